// Package scene hosts a battle: it drives the controller once per tick,
// routes parked units through the command menu, keeps the message window
// and, when the battle ends, updates the save slot and records the result.
package scene

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/shuttlebattle/audit"
	"github.com/kasuganosora/shuttlebattle/cache"
	"github.com/kasuganosora/shuttlebattle/game/battle"
	"github.com/kasuganosora/shuttlebattle/game/feedback"
	"github.com/kasuganosora/shuttlebattle/game/save"
	"github.com/kasuganosora/shuttlebattle/plugin/hook"
	"github.com/kasuganosora/shuttlebattle/resource"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNoFormation = errors.New("scene: formation is empty")
	ErrNoCommand   = errors.New("scene: no unit is awaiting a command")
	ErrFinished    = errors.New("scene: battle is over")
	ErrTickLimit   = errors.New("scene: tick limit reached")
	// ErrVetoed means a BeforeCommand hook kept the unit parked.
	ErrVetoed = errors.New("scene: command vetoed by hook")
)

// Deps are the collaborators of a battle scene. Only Skills and Formation
// are required.
type Deps struct {
	Skills    battle.SkillBook
	Formation *resource.Formation
	Field     battle.Field
	Sink      *feedback.Sink
	Cache     cache.Cache
	PubSub    cache.PubSub
	Saves     *save.Service
	Audit     *audit.Service
	Hooks     *hook.Center
	Logger    *zap.Logger
}

// CommandRequest is the payload of the BeforeCommand hook.
type CommandRequest struct {
	UnitID   string
	UnitName string
	Side     battle.Side
	Option   string
}

// Options tune one battle.
type Options struct {
	BattleID     string // generated when empty
	Seed         int64  // 0 = time-based
	Tick         time.Duration
	DefaultSkill string
	// CommandDelayTicks is how many ticks a unit may stay parked in
	// COMMAND before "fight" is confirmed for it. Negative disables it.
	CommandDelayTicks int
	MaxTicks          int64 // 0 = unlimited
	MessageLogSize    int
	Slot              int // save slot credited on victory; 0 = none
}

// Summary describes a finished (or abandoned) battle.
type Summary struct {
	BattleID  string        `json:"battle_id"`
	Result    battle.Result `json:"result"`
	Ticks     int64         `json:"ticks"`
	Seed      int64         `json:"seed"`
	Survivors []string      `json:"survivors"`
	Messages  []string      `json:"messages"`
	Save      *save.Data    `json:"save,omitempty"`
}

// Battle is one running battle scene. All exported methods are safe for
// concurrent use.
type Battle struct {
	mu sync.Mutex

	id     string
	seed   int64
	opts   Options
	ctrl   *battle.Controller
	sink   *feedback.Sink
	menu   *Menu
	log    *MessageLog
	parked map[string]int64 // unit id → tick it entered COMMAND

	pubsub cache.PubSub
	saves  *save.Service
	audit  *audit.Service
	hooks  *hook.Center
	logger *zap.Logger
	tickRL *rate.Limiter

	// onParked lets the realtime driver schedule wall-clock auto-confirms.
	onParked func(unitID string)

	started time.Time
	result  battle.Result
	summary *Summary
	done    chan struct{}
}

// New builds the controller, places the formation and returns a battle
// ready to step.
func New(deps Deps, opts Options) (*Battle, error) {
	if deps.Formation == nil || len(deps.Formation.Allies)+len(deps.Formation.Enemies) == 0 {
		return nil, ErrNoFormation
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BattleID == "" {
		opts.BattleID = uuid.NewString()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if opts.Tick <= 0 {
		opts.Tick = 16 * time.Millisecond
	}
	if deps.Sink == nil {
		deps.Sink = feedback.NewSink(0, 0, logger)
	}
	logger = logger.With(zap.String("battle", opts.BattleID))

	b := &Battle{
		id:      opts.BattleID,
		seed:    opts.Seed,
		opts:    opts,
		sink:    deps.Sink,
		menu:    NewMenu(),
		log:     newMessageLog(opts.MessageLogSize, deps.Cache, "battle:"+opts.BattleID+":log", logger),
		parked:  make(map[string]int64),
		pubsub:  deps.PubSub,
		saves:   deps.Saves,
		audit:   deps.Audit,
		hooks:   deps.Hooks,
		logger:  logger,
		tickRL:  rate.NewLimiter(rate.Every(time.Second), 1),
		started: time.Now(),
		result:  battle.ResultOngoing,
		done:    make(chan struct{}),
	}

	b.ctrl = battle.NewController(battle.Config{
		Skills:       deps.Skills,
		Field:        deps.Field,
		DefaultSkill: opts.DefaultSkill,
		RNG:          rand.New(rand.NewSource(opts.Seed)),
		Logger:       logger,
		Feedback:     deps.Sink,
		OnCommand:    b.handleCommand,
		OnOutcome:    b.publishOutcome,
	})

	units, err := battle.BuildUnits(deps.Formation, b.ctrl.Field())
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	for _, u := range units {
		if err := b.ctrl.AddUnit(u); err != nil {
			return nil, fmt.Errorf("scene: %w", err)
		}
	}
	logger.Info("battle created",
		zap.Int("allies", len(deps.Formation.Allies)),
		zap.Int("enemies", len(deps.Formation.Enemies)),
		zap.Int64("seed", opts.Seed))
	return b, nil
}

func (b *Battle) ID() string           { return b.id }
func (b *Battle) Seed() int64          { return b.seed }
func (b *Battle) Sink() *feedback.Sink { return b.sink }

// Done is closed when the battle has a winner.
func (b *Battle) Done() <-chan struct{} { return b.done }

// Result returns the current victory state.
func (b *Battle) Result() battle.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Snapshot returns the living units for rendering.
func (b *Battle) Snapshot() []battle.UnitView {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrl.Snapshot()
}

// Messages returns the visible message window, oldest first.
func (b *Battle) Messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.log.Lines()
}

// Step advances the battle by one configured tick.
func (b *Battle) Step(ctx context.Context) battle.Result {
	return b.StepBy(ctx, b.opts.Tick)
}

// StepBy advances the battle by dt. Once the battle is over further
// steps do nothing.
func (b *Battle) StepBy(ctx context.Context, dt time.Duration) battle.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.step(ctx, dt)
}

func (b *Battle) step(ctx context.Context, dt time.Duration) battle.Result {
	if b.result != battle.ResultOngoing {
		return b.result
	}
	sec := dt.Seconds()
	b.ctrl.Update(sec)
	b.sink.Advance(sec)
	b.pruneParked()

	if msg, ok := b.ctrl.TakeMessage(); ok {
		b.log.Push(ctx, msg)
	}
	b.autoConfirm(ctx)

	if b.tickRL.Allow() {
		b.logger.Debug("battle tick",
			zap.Int64("tick", b.ctrl.Ticks()),
			zap.Int("alive", len(b.ctrl.Snapshot())),
			zap.Int("parked", len(b.parked)))
	}

	if res := b.ctrl.CheckVictory(); res != battle.ResultOngoing {
		b.finish(ctx, res)
	}
	return b.result
}

// handleCommand runs inside Update with b.mu held.
func (b *Battle) handleCommand(u *battle.Unit) {
	b.pruneParked()
	b.parked[u.ID] = b.ctrl.Ticks()
	if len(b.parked) == 1 {
		b.menu.Reset()
	}
	if b.onParked != nil {
		b.onParked(u.ID)
	}
}

// pruneParked forgets units that left COMMAND without a choice, which
// only happens when they die while parked.
func (b *Battle) pruneParked() {
	for id := range b.parked {
		if u, ok := b.ctrl.Unit(id); !ok || u.State != battle.StateCommand {
			delete(b.parked, id)
		}
	}
}

// autoConfirm picks "fight" for units parked longer than the delay.
func (b *Battle) autoConfirm(ctx context.Context) {
	if b.opts.CommandDelayTicks < 0 || b.onParked != nil {
		return
	}
	for _, u := range b.ctrl.Commanding() {
		since, ok := b.parked[u.ID]
		if !ok || b.ctrl.Ticks()-since < int64(b.opts.CommandDelayTicks) {
			continue
		}
		if err := b.choose(ctx, u, OptionFight); err != nil && !errors.Is(err, ErrVetoed) {
			b.logger.Error("auto confirm failed", zap.String("unit", u.ID), zap.Error(err))
		}
	}
}

// Active returns the unit the command menu currently applies to: the
// first parked unit in registration order.
func (b *Battle) Active() (battle.UnitView, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u := b.active(); u != nil {
		return u.View(), true
	}
	return battle.UnitView{}, false
}

func (b *Battle) active() *battle.Unit {
	if cmd := b.ctrl.Commanding(); len(cmd) > 0 {
		return cmd[0]
	}
	return nil
}

// MenuUp moves the cursor up.
func (b *Battle) MenuUp() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.menu.Up()
}

// MenuDown moves the cursor down.
func (b *Battle) MenuDown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.menu.Down()
}

// Confirm applies the highlighted option to the active unit.
func (b *Battle) Confirm(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result != battle.ResultOngoing {
		return ErrFinished
	}
	u := b.active()
	if u == nil {
		return ErrNoCommand
	}
	return b.choose(ctx, u, b.menu.Selected())
}

// ConfirmUnit applies "fight" to a specific parked unit.
func (b *Battle) ConfirmUnit(ctx context.Context, unitID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.result != battle.ResultOngoing {
		return ErrFinished
	}
	u, ok := b.ctrl.Unit(unitID)
	if !ok || u.State != battle.StateCommand {
		return ErrNoCommand
	}
	return b.choose(ctx, u, OptionFight)
}

func (b *Battle) choose(ctx context.Context, u *battle.Unit, option string) error {
	option, err := b.beforeCommand(ctx, u, option)
	if err != nil {
		return err
	}
	switch option {
	case OptionFight:
		target, ok := b.ctrl.FindTarget(u.ID)
		if !ok {
			b.log.Push(ctx, "no target")
			err = b.ctrl.Wait(u.ID)
			break
		}
		err = b.ctrl.DecideAction(u.ID, b.ctrl.DefaultSkill(), target.ID)
	case OptionWait:
		if err = b.ctrl.Wait(u.ID); err == nil {
			b.log.Push(ctx, u.Name+" waits")
		}
	default:
		err = fmt.Errorf("scene: unknown menu option %q", option)
	}
	if err != nil {
		// The controller only rejects decisions the host sequenced wrongly.
		b.logger.Error("command rejected", zap.String("unit", u.ID), zap.String("option", option), zap.Error(err))
		return err
	}
	delete(b.parked, u.ID)
	b.menu.Reset()
	return nil
}

// beforeCommand lets hooks rewrite or veto a menu choice.
func (b *Battle) beforeCommand(ctx context.Context, u *battle.Unit, option string) (string, error) {
	if b.hooks == nil {
		return option, nil
	}
	req := CommandRequest{UnitID: u.ID, UnitName: u.Name, Side: u.Side, Option: option}
	data, err := b.hooks.Trigger(ctx, hook.BeforeCommand, req)
	if errors.Is(err, hook.ErrInterrupt) {
		return "", ErrVetoed
	}
	if err != nil {
		b.logger.Warn("command hook failed", zap.String("unit", u.ID), zap.Error(err))
	}
	if r, ok := data.(CommandRequest); ok && r.Option != "" {
		return r.Option, nil
	}
	return option, nil
}

func (b *Battle) trigger(ctx context.Context, event string, data interface{}) {
	if b.hooks == nil {
		return
	}
	if _, err := b.hooks.Trigger(ctx, event, data); err != nil && !errors.Is(err, hook.ErrInterrupt) {
		b.logger.Warn("hook failed", zap.String("event", event), zap.Error(err))
	}
}

func (b *Battle) publishOutcome(out battle.ActionOutcome) {
	b.trigger(context.Background(), hook.AfterAction, out)
	if b.pubsub == nil {
		return
	}
	payload, _ := json.Marshal(out)
	if err := b.pubsub.Publish(context.Background(), b.channel("outcomes"), string(payload)); err != nil {
		b.logger.Warn("outcome publish failed", zap.Error(err))
	}
}

func (b *Battle) channel(kind string) string {
	return "battle:" + b.id + ":" + kind
}

// finish runs once, with b.mu held.
func (b *Battle) finish(ctx context.Context, res battle.Result) {
	b.result = res
	sum := b.buildSummary()

	if res == battle.ResultAlly && b.saves != nil && b.opts.Slot > 0 {
		d, err := b.saves.AddProgress(ctx, b.opts.Slot, 1)
		if err != nil {
			b.logger.Error("progress save failed", zap.Int("slot", b.opts.Slot), zap.Error(err))
		} else {
			sum.Save = &d
		}
	}
	if b.audit != nil {
		b.audit.Record(audit.BattleEntry{
			BattleID:  b.id,
			Result:    string(res),
			Ticks:     sum.Ticks,
			Seed:      b.seed,
			Slot:      b.opts.Slot,
			Survivors: sum.Survivors,
			Messages:  sum.Messages,
			Duration:  time.Since(b.started),
		})
	}
	if b.pubsub != nil {
		if err := b.pubsub.Publish(ctx, b.channel("result"), string(res)); err != nil {
			b.logger.Warn("result publish failed", zap.Error(err))
		}
	}
	b.summary = sum
	b.trigger(ctx, hook.OnBattleEnd, *sum)
	close(b.done)
	b.logger.Info("battle finished",
		zap.String("result", string(res)),
		zap.Int64("ticks", sum.Ticks),
		zap.Strings("survivors", sum.Survivors))
}

func (b *Battle) buildSummary() *Summary {
	sum := &Summary{
		BattleID:  b.id,
		Result:    b.result,
		Ticks:     b.ctrl.Ticks(),
		Seed:      b.seed,
		Survivors: []string{},
		Messages:  b.log.History(),
	}
	for _, v := range b.ctrl.Snapshot() {
		sum.Survivors = append(sum.Survivors, v.ID)
	}
	return sum
}

// Summary returns the final summary, or a snapshot of the running battle.
func (b *Battle) Summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.summary != nil {
		return *b.summary
	}
	return *b.buildSummary()
}
