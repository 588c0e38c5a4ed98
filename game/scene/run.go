package scene

import (
	"context"
	"errors"
	"time"

	"github.com/kasuganosora/shuttlebattle/game/battle"
	"github.com/kasuganosora/shuttlebattle/scheduler"
	"go.uber.org/zap"
)

// RunHeadless steps the battle as fast as possible until it ends, the
// tick limit is hit or ctx is cancelled.
func (b *Battle) RunHeadless(ctx context.Context) (Summary, error) {
	for {
		if err := ctx.Err(); err != nil {
			return b.Summary(), err
		}
		if b.Step(ctx) != battle.ResultOngoing {
			return b.Summary(), nil
		}
		if b.opts.MaxTicks > 0 && b.ticks() >= b.opts.MaxTicks {
			b.logger.Warn("battle abandoned at tick limit", zap.Int64("ticks", b.opts.MaxTicks))
			return b.Summary(), ErrTickLimit
		}
	}
}

// RunRealtime drives the battle from a scheduler ticker at the configured
// tick interval, stepping by the wall time that actually elapsed. Parked
// units are auto-confirmed by scheduler delays unless CommandDelayTicks is
// negative. It blocks until the battle ends or ctx is cancelled.
func (b *Battle) RunRealtime(ctx context.Context, sched *scheduler.Scheduler) (Summary, error) {
	task := "battle:" + b.id

	b.mu.Lock()
	if b.opts.CommandDelayTicks >= 0 {
		delay := time.Duration(b.opts.CommandDelayTicks) * b.opts.Tick
		b.onParked = func(unitID string) {
			b.scheduleConfirm(ctx, sched, task+":confirm:"+unitID, unitID, delay)
		}
	}
	b.mu.Unlock()

	sched.AddTicker(task, b.opts.Tick, func(elapsed time.Duration) {
		b.StepBy(ctx, elapsed)
	})
	defer sched.Remove(task)

	select {
	case <-b.done:
		return b.Summary(), nil
	case <-ctx.Done():
		return b.Summary(), ctx.Err()
	}
}

// scheduleConfirm confirms "fight" for a parked unit after delay. A vetoed
// confirm is tried again one tick later, for as long as ctx is live.
func (b *Battle) scheduleConfirm(ctx context.Context, sched *scheduler.Scheduler, name, unitID string, delay time.Duration) {
	sched.AddDelay(name, delay, func() {
		err := b.ConfirmUnit(ctx, unitID)
		switch {
		case err == nil, errors.Is(err, ErrNoCommand), errors.Is(err, ErrFinished):
		case errors.Is(err, ErrVetoed):
			if ctx.Err() == nil {
				b.scheduleConfirm(ctx, sched, name, unitID, b.opts.Tick)
			}
		default:
			b.logger.Error("auto confirm failed", zap.String("unit", unitID), zap.Error(err))
		}
	})
}

func (b *Battle) ticks() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrl.Ticks()
}
