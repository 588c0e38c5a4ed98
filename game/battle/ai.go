package battle

import "math"

// Autopilot decides for units that act without external input.
type Autopilot interface {
	// Choose returns the action to commit, or false when the unit has
	// nothing to do this cycle.
	Choose(c *Controller, u *Unit) (PlannedAction, bool)
}

// NearestTarget attacks the closest living opponent by horizontal
// distance. An empty SkillID uses the controller's default skill.
type NearestTarget struct {
	SkillID string
}

func (n NearestTarget) Choose(c *Controller, u *Unit) (PlannedAction, bool) {
	t, ok := c.nearestOpponent(u)
	if !ok {
		return PlannedAction{}, false
	}
	skill := n.SkillID
	if skill == "" {
		skill = c.defaultSkill
	}
	return PlannedAction{SkillID: skill, UserID: u.ID, TargetID: t.ID}, true
}

// nearestOpponent scans in insertion order; the first of equally distant
// candidates wins.
func (c *Controller) nearestOpponent(u *Unit) (*Unit, bool) {
	var best *Unit
	bestDist := math.Inf(1)
	for _, id := range c.order {
		cand := c.units[id]
		if cand.IsDead() || !opposes(u, cand) {
			continue
		}
		if d := math.Abs(cand.Pos.X - u.Pos.X); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best, best != nil
}
