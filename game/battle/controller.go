package battle

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kasuganosora/shuttlebattle/resource"
	"go.uber.org/zap"
)

// DefaultSkillID is the skill automatic units commit to.
const DefaultSkillID = "melee_punch"

var (
	ErrDuplicateUnit = errors.New("battle: duplicate unit id")
	ErrInvalidUnit   = errors.New("battle: invalid unit")
	ErrUnknownUnit   = errors.New("battle: unknown unit")
	// ErrNotCommanding means a decision arrived for a unit that is not
	// parked in COMMAND. It is always a host sequencing bug.
	ErrNotCommanding = errors.New("battle: unit is not awaiting a command")
)

// SkillBook resolves skill definitions by id.
type SkillBook interface {
	SkillByID(id string) (*resource.Skill, bool)
}

// Config configures a Controller.
type Config struct {
	Skills       SkillBook
	Field        Field // zero value = DefaultField()
	DefaultSkill string
	RNG          *rand.Rand // injectable for testing
	Logger       *zap.Logger
	Feedback     Feedback  // nil = discard
	Autopilot    Autopilot // nil = NearestTarget
	TurnOrder    TurnOrder // nil = DefaultTurnOrder

	// OnCommand is called synchronously when a unit enters COMMAND.
	OnCommand func(u *Unit)
	// OnOutcome is called after every executed action.
	OnOutcome func(out ActionOutcome)
}

// Controller owns the unit arena and advances the battle one tick per
// Update call. It is not safe for concurrent use.
type Controller struct {
	units map[string]*Unit
	order []string // insertion order, drives deterministic iteration
	ready []*Unit

	skills       SkillBook
	field        Field
	defaultSkill string
	rng          *rand.Rand
	logger       *zap.Logger
	feedback     Feedback
	autopilot    Autopilot
	turnOrder    TurnOrder
	onCommand    func(u *Unit)
	onOutcome    func(out ActionOutcome)

	lastMessage string
	ticks       int64
}

// NewController creates an empty battle. Units must be added before the
// first Update.
func NewController(cfg Config) *Controller {
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Field.PxPerSec == 0 && len(cfg.Field.LaneY) == 0 {
		cfg.Field = DefaultField()
	}
	if cfg.DefaultSkill == "" {
		cfg.DefaultSkill = DefaultSkillID
	}
	if cfg.Skills == nil {
		cfg.Skills = (*resource.SkillTable)(nil)
	}
	if cfg.Autopilot == nil {
		cfg.Autopilot = NearestTarget{}
	}
	if cfg.TurnOrder == nil {
		cfg.TurnOrder = DefaultTurnOrder{}
	}
	return &Controller{
		units:        make(map[string]*Unit),
		skills:       cfg.Skills,
		field:        cfg.Field,
		defaultSkill: cfg.DefaultSkill,
		rng:          cfg.RNG,
		logger:       cfg.Logger,
		feedback:     safeFeedback{sink: cfg.Feedback, logger: cfg.Logger},
		autopilot:    cfg.Autopilot,
		turnOrder:    cfg.TurnOrder,
		onCommand:    cfg.OnCommand,
		onOutcome:    cfg.OnOutcome,
	}
}

// SetOnCommand replaces the command callback.
func (c *Controller) SetOnCommand(fn func(u *Unit)) { c.onCommand = fn }

// SetOnOutcome replaces the outcome callback.
func (c *Controller) SetOnOutcome(fn func(out ActionOutcome)) { c.onOutcome = fn }

func (c *Controller) Field() Field         { return c.field }
func (c *Controller) DefaultSkill() string { return c.defaultSkill }
func (c *Controller) Ticks() int64         { return c.ticks }

// AddUnit registers a unit. Ids must be unique within a battle; a
// duplicate is rejected and the existing unit is left untouched.
func (c *Controller) AddUnit(u *Unit) error {
	if u == nil || u.ID == "" {
		return ErrInvalidUnit
	}
	if u.Stats.Threshold <= 0 {
		return fmt.Errorf("%w: %q threshold must be positive", ErrInvalidUnit, u.ID)
	}
	if _, exists := c.units[u.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateUnit, u.ID)
	}
	if u.State == "" {
		u.State = StateIdle
	}
	if u.Facing == 0 {
		u.Facing = c.field.facing(u.Side)
	}
	if u.ATB > u.Stats.Threshold {
		u.ATB = u.Stats.Threshold
	}
	if u.State == StateDead {
		u.Actions = nil
	}
	u.queued = false
	c.units[u.ID] = u
	c.order = append(c.order, u.ID)
	return nil
}

// Unit returns the unit with the given id.
func (c *Controller) Unit(id string) (*Unit, bool) {
	u, ok := c.units[id]
	return u, ok
}

// Units returns every unit, dead or alive, in insertion order.
func (c *Controller) Units() []*Unit {
	out := make([]*Unit, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.units[id])
	}
	return out
}

// Snapshot returns render views of the living units.
func (c *Controller) Snapshot() []UnitView {
	out := make([]UnitView, 0, len(c.order))
	for _, id := range c.order {
		if u := c.units[id]; u.IsAlive() {
			out = append(out, u.View())
		}
	}
	return out
}

// Commanding returns the units currently parked in COMMAND.
func (c *Controller) Commanding() []*Unit {
	var out []*Unit
	for _, id := range c.order {
		if u := c.units[id]; u.State == StateCommand {
			out = append(out, u)
		}
	}
	return out
}

// LastMessage returns the most recent battle message without clearing it.
func (c *Controller) LastMessage() string { return c.lastMessage }

// TakeMessage returns and clears the most recent battle message.
func (c *Controller) TakeMessage() (string, bool) {
	msg := c.lastMessage
	c.lastMessage = ""
	return msg, msg != ""
}

// Update advances the battle by dt seconds. dt must be non-negative.
func (c *Controller) Update(dt float64) {
	if dt < 0 || math.IsNaN(dt) {
		panic(fmt.Sprintf("battle: Update called with dt=%v", dt))
	}
	c.ticks++

	for _, id := range c.order {
		u := c.units[id]
		switch u.State {
		case StateIdle:
			c.accumulate(u, dt)
		case StateCharge:
			if c.charge(u, dt) {
				c.act(u)
			}
		case StateAct:
			c.act(u)
		case StateCooldown:
			c.retreat(u, dt)
		case StateCommand, StateDead:
			// frozen
		}
	}

	c.dispatchReady()
}

func (c *Controller) accumulate(u *Unit, dt float64) {
	if u.ATB < u.Stats.Threshold {
		u.ATB = math.Min(u.Stats.Threshold, u.ATB+u.Stats.ATBRate*dt)
	}
	if u.Ready() && !u.queued {
		u.queued = true
		c.ready = append(c.ready, u)
	}
}

func (c *Controller) step(u *Unit, dt float64) float64 {
	return u.Stats.Spd * c.field.PxPerSec * dt * float64(u.Facing)
}

// reached reports whether x has met or passed mark when moving in dir.
func reached(x, mark float64, dir int) bool {
	if dir > 0 {
		return x >= mark
	}
	return x <= mark
}

// charge moves u toward the center line and reports arrival.
func (c *Controller) charge(u *Unit, dt float64) bool {
	u.Pos.X += c.step(u, dt)
	if !reached(u.Pos.X, c.field.CenterX, u.Facing) {
		return false
	}
	u.Pos.X = c.field.CenterX
	u.State = StateAct
	c.logger.Debug("unit reached center", zap.String("unit", u.ID))
	return true
}

func (c *Controller) retreat(u *Unit, dt float64) {
	u.Pos.X -= c.step(u, dt)
	if !reached(u.Pos.X, u.HomeX, -u.Facing) {
		return
	}
	u.Pos.X = u.HomeX
	u.ATB = 0
	u.State = StateIdle
}

// act resolves the first planned action of a unit standing on the center
// line, then sends it home.
func (c *Controller) act(u *Unit) {
	if len(u.Actions) > 0 {
		pa := u.Actions[0]
		u.Actions = u.Actions[1:]

		if t, ok := c.units[pa.TargetID]; !ok || t.IsDead() {
			nt, found := c.nearestOpponent(u)
			if !found {
				c.logger.Debug("no target left, skipping action",
					zap.String("unit", u.ID), zap.String("skill", pa.SkillID))
				u.State = StateCooldown
				return
			}
			pa.TargetID = nt.ID
			u.TargetID = nt.ID
		}
		c.applyAction(pa)
	}
	if u.IsAlive() {
		u.State = StateCooldown
	}
}

func (c *Controller) dispatchReady() {
	if len(c.ready) == 0 {
		return
	}
	batch := c.ready
	c.ready = nil
	for _, u := range batch {
		u.queued = false
	}

	for _, u := range c.turnOrder.Order(batch, c.rng) {
		// An earlier action this tick may have killed a queued unit.
		if u.State != StateIdle || !u.Ready() {
			continue
		}
		if u.decidesExternally() {
			c.startCommand(u)
			continue
		}
		pa, ok := c.autopilot.Choose(c, u)
		if !ok {
			c.logger.Debug("automatic unit has no target", zap.String("unit", u.ID))
			continue
		}
		c.commit(u, pa.SkillID, pa.TargetID)
	}
}

func (c *Controller) startCommand(u *Unit) {
	u.State = StateCommand
	c.logger.Debug("unit awaiting command", zap.String("unit", u.ID))
	if c.onCommand != nil {
		c.onCommand(u)
	}
}

func (c *Controller) commit(u *Unit, skillID, targetID string) {
	u.Actions = append(u.Actions, PlannedAction{SkillID: skillID, UserID: u.ID, TargetID: targetID})
	u.TargetID = targetID
	u.State = StateCharge
	c.logger.Debug("action planned",
		zap.String("unit", u.ID), zap.String("skill", skillID), zap.String("target", targetID))
}

// DecideAction queues a skill use for a unit parked in COMMAND and starts
// its charge toward the center line.
func (c *Controller) DecideAction(unitID, skillID, targetID string) error {
	u, err := c.commanding(unitID)
	if err != nil {
		return err
	}
	if _, ok := c.units[targetID]; !ok {
		return fmt.Errorf("%w: target %q", ErrUnknownUnit, targetID)
	}
	c.commit(u, skillID, targetID)
	return nil
}

// Wait returns a unit parked in COMMAND to IDLE with an empty meter.
func (c *Controller) Wait(unitID string) error {
	u, err := c.commanding(unitID)
	if err != nil {
		return err
	}
	u.ATB = 0
	u.State = StateIdle
	return nil
}

func (c *Controller) commanding(unitID string) (*Unit, error) {
	u, ok := c.units[unitID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, unitID)
	}
	if u.State != StateCommand {
		return nil, fmt.Errorf("%w: %q is %s", ErrNotCommanding, unitID, u.State)
	}
	return u, nil
}

// FindTarget returns the living opponent nearest to the given unit.
func (c *Controller) FindTarget(unitID string) (*Unit, bool) {
	u, ok := c.units[unitID]
	if !ok {
		return nil, false
	}
	return c.nearestOpponent(u)
}

// CheckVictory evaluates the current arena.
func (c *Controller) CheckVictory() Result {
	return Victory(c.Units())
}
