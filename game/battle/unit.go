package battle

// Side is the team a unit fights for.
type Side string

const (
	SideAlly  Side = "ally"
	SideEnemy Side = "enemy"
)

// State is a unit's position in the shuttle-run cycle.
type State string

const (
	StateIdle     State = "IDLE"
	StateCommand  State = "COMMAND"
	StateCharge   State = "CHARGE"
	StateAct      State = "ACT"
	StateCooldown State = "COOLDOWN"
	StateDead     State = "DEAD"
)

// Control selects who decides a unit's action when it becomes ready.
type Control int

const (
	// ControlBySide hands allies to the command callback and lets
	// everyone else act automatically.
	ControlBySide Control = iota
	ControlPlayer
	ControlAuto
)

// ParseControl maps the formation file spelling to a Control.
func ParseControl(s string) Control {
	switch s {
	case "player":
		return ControlPlayer
	case "auto":
		return ControlAuto
	default:
		return ControlBySide
	}
}

// Vec2 is a battlefield position in pixels.
type Vec2 struct {
	X, Y float64
}

// Stats are fixed for the whole battle.
type Stats struct {
	MaxHP     int
	Atk       int
	Def       int
	Spd       float64 // movement multiplier applied to Field.PxPerSec
	ATBRate   float64 // readiness gained per second
	Threshold float64 // readiness needed to act
}

// PlannedAction is a committed skill use waiting for its user to reach
// the center line. Both units are referenced by id.
type PlannedAction struct {
	SkillID  string
	UserID   string
	TargetID string
}

// Unit is a battle participant. Units are owned by the Controller and
// must only be mutated through it once added.
type Unit struct {
	ID      string
	Name    string
	Side    Side
	Lane    int
	Stats   Stats
	Control Control

	HP      int
	ATB     float64
	State   State
	Pos     Vec2
	HomeX   float64
	Facing  int // +1 for allies, -1 for enemies
	Actions []PlannedAction

	// TargetID is the most recent target chosen for this unit. It may
	// name a unit that has since died.
	TargetID string

	queued bool // in the controller's ready queue for the current tick
}

func (u *Unit) IsDead() bool  { return u.State == StateDead }
func (u *Unit) IsAlive() bool { return u.State != StateDead }

// Ready reports whether the readiness meter is full.
func (u *Unit) Ready() bool { return u.ATB >= u.Stats.Threshold }

// decidesExternally reports whether dispatch goes to the command callback.
func (u *Unit) decidesExternally() bool {
	switch u.Control {
	case ControlPlayer:
		return true
	case ControlAuto:
		return false
	default:
		return u.Side == SideAlly
	}
}

func opposes(a, b *Unit) bool { return a.Side != b.Side }

// UnitView is a read-only copy of a unit for rendering.
type UnitView struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Side      Side    `json:"side"`
	Lane      int     `json:"lane"`
	State     State   `json:"state"`
	HP        int     `json:"hp"`
	MaxHP     int     `json:"max_hp"`
	ATB       float64 `json:"atb"`
	Threshold float64 `json:"threshold"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// View snapshots the unit.
func (u *Unit) View() UnitView {
	return UnitView{
		ID:        u.ID,
		Name:      u.Name,
		Side:      u.Side,
		Lane:      u.Lane,
		State:     u.State,
		HP:        u.HP,
		MaxHP:     u.Stats.MaxHP,
		ATB:       u.ATB,
		Threshold: u.Stats.Threshold,
		X:         u.Pos.X,
		Y:         u.Pos.Y,
	}
}
