package battle

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// ActionOutcome is the result of one executed action.
type ActionOutcome struct {
	UserID   string `json:"user_id"`
	TargetID string `json:"target_id"`
	SkillID  string `json:"skill_id"`
	Damage   int    `json:"damage"`
	Missed   bool   `json:"missed"`
	Defeated bool   `json:"defeated"`
	HPAfter  int    `json:"hp_after"`
	Message  string `json:"message"`
}

// Damage returns power + atk - def, never less than 1.
func Damage(power, atk, def int) int {
	d := power + atk - def
	if d < 1 {
		return 1
	}
	return d
}

// applyAction executes a planned action. References that no longer
// resolve, dead targets and unknown skills abort silently.
func (c *Controller) applyAction(pa PlannedAction) (ActionOutcome, bool) {
	user, ok := c.units[pa.UserID]
	if !ok {
		return ActionOutcome{}, false
	}
	target, ok := c.units[pa.TargetID]
	if !ok || target.IsDead() {
		return ActionOutcome{}, false
	}
	skill, ok := c.skills.SkillByID(pa.SkillID)
	if !ok {
		c.logger.Warn("skill definition missing",
			zap.String("skill", pa.SkillID), zap.String("unit", user.ID))
		return ActionOutcome{}, false
	}

	c.feedback.PlayEffect(skill.Effect, target.Pos.X, target.Pos.Y)

	out := ActionOutcome{UserID: user.ID, TargetID: target.ID, SkillID: skill.ID}

	// A miss is a roll above hit; roll == hit also misses here so that
	// hit 0.0 never lands. 1.0 always lands since roll < 1.
	if roll := c.rng.Float64(); roll >= skill.Hit {
		out.Missed = true
		c.lastMessage = fmt.Sprintf("%s's %s missed!", user.Name, skill.Name)
		c.feedback.PopDamage("0", target.Pos.X, target.Pos.Y)
	} else {
		dmg := Damage(skill.Power, user.Stats.Atk, target.Stats.Def)
		target.HP -= dmg
		out.Damage = dmg
		c.feedback.PopDamage(strconv.Itoa(dmg), target.Pos.X, target.Pos.Y)
		if target.HP <= 0 {
			c.kill(target)
			out.Defeated = true
			c.lastMessage = fmt.Sprintf("%s's %s! %s was defeated!", user.Name, skill.Name, target.Name)
		} else {
			c.lastMessage = fmt.Sprintf("%s's %s! %d damage to %s", user.Name, skill.Name, dmg, target.Name)
		}
	}
	out.HPAfter = target.HP
	out.Message = c.lastMessage

	c.logger.Info(c.lastMessage,
		zap.String("user", user.ID),
		zap.String("target", target.ID),
		zap.String("skill", skill.ID),
		zap.Int("damage", out.Damage),
		zap.Bool("missed", out.Missed))

	if c.onOutcome != nil {
		c.onOutcome(out)
	}
	return out, true
}

func (c *Controller) kill(u *Unit) {
	u.HP = 0
	u.State = StateDead
	u.Actions = nil
	u.queued = false
	c.logger.Debug("unit defeated", zap.String("unit", u.ID))
}
