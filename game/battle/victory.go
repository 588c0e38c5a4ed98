package battle

// Result is the outcome of a victory check.
type Result string

const (
	ResultOngoing Result = "ongoing"
	ResultAlly    Result = "ally"  // every enemy is down
	ResultEnemy   Result = "enemy" // every ally is down
)

// Victory reports which side has won. When both sides are empty the
// ally check wins, so the result is ResultEnemy.
func Victory(units []*Unit) Result {
	allies, enemies := 0, 0
	for _, u := range units {
		if u.IsDead() {
			continue
		}
		switch u.Side {
		case SideAlly:
			allies++
		case SideEnemy:
			enemies++
		}
	}
	if allies == 0 {
		return ResultEnemy
	}
	if enemies == 0 {
		return ResultAlly
	}
	return ResultOngoing
}
