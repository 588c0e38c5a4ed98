// Package hook lets plugins observe and steer a battle at fixed points of
// its lifecycle.
package hook

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrInterrupt signals that a handler wants to stop further processing.
// For BeforeCommand it also vetoes the command.
var ErrInterrupt = errors.New("hook interrupted")

// Fn is a hook handler. It returns the (possibly replaced) data to pass to
// the next handler.
type Fn func(ctx context.Context, event string, data interface{}) (interface{}, error)

// Battle lifecycle events.
const (
	// BeforeCommand carries a scene.CommandRequest. Handlers may change the
	// option or return ErrInterrupt to leave the unit parked.
	BeforeCommand = "before_command"
	// AfterAction carries the battle.ActionOutcome of every executed action.
	AfterAction = "after_action"
	// OnBattleEnd carries the final scene.Summary.
	OnBattleEnd = "on_battle_end"
)

type entry struct {
	priority int
	name     string
	fn       Fn
}

// Center holds hook registrations. Handlers run on the caller's goroutine
// while the battle is locked, so they must not call back into it.
type Center struct {
	mu    sync.RWMutex
	hooks map[string][]entry
}

func NewCenter() *Center {
	return &Center{hooks: make(map[string][]entry)}
}

// Register adds fn for event. Lower priorities run first; equal priorities
// run in registration order.
func (c *Center) Register(event string, priority int, name string, fn Fn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.hooks[event], entry{priority: priority, name: name, fn: fn})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})
	c.hooks[event] = entries
}

// Unregister removes every handler called name from event.
func (c *Center) Unregister(event, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks[event] = without(c.hooks[event], name)
}

// UnregisterAll removes every handler called name from all events.
func (c *Center) UnregisterAll(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for event, entries := range c.hooks {
		c.hooks[event] = without(entries, name)
	}
}

func without(entries []entry, name string) []entry {
	out := entries[:0]
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of handlers registered for event.
func (c *Center) Len(event string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hooks[event])
}

// Trigger runs the handlers for event in order, threading data through
// them. ErrInterrupt stops the chain and is returned as is. Other errors
// do not stop the chain; they are joined and returned at the end.
func (c *Center) Trigger(ctx context.Context, event string, data interface{}) (interface{}, error) {
	c.mu.RLock()
	entries := make([]entry, len(c.hooks[event]))
	copy(entries, c.hooks[event])
	c.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		out, err := e.fn(ctx, event, data)
		if errors.Is(err, ErrInterrupt) {
			return out, err
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data = out
	}
	return data, errors.Join(errs...)
}
