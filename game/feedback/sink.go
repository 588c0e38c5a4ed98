// Package feedback collects the transient presentation cues emitted during a
// battle: skill effects and floating damage markers. Entries expire on a
// simulated clock that the host advances once per tick.
package feedback

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEffectTTL = 500 * time.Millisecond
	DefaultMarkerTTL = time.Second
)

// Effect is a named visual cue at a position.
type Effect struct {
	Name      string
	X, Y      float64
	CreatedAt time.Duration
}

// Marker is floating text, usually a damage number or "0" for a miss.
type Marker struct {
	Text      string
	X, Y      float64
	CreatedAt time.Duration
}

// Sink stores live cues. It satisfies battle.Feedback and is safe for
// concurrent use so a renderer may read while the battle writes.
type Sink struct {
	mu        sync.Mutex
	now       time.Duration
	effectTTL time.Duration
	markerTTL time.Duration
	effects   []Effect
	markers   []Marker
	logger    *zap.Logger
}

// NewSink creates a sink. Non-positive TTLs fall back to the defaults.
func NewSink(effectTTL, markerTTL time.Duration, logger *zap.Logger) *Sink {
	if effectTTL <= 0 {
		effectTTL = DefaultEffectTTL
	}
	if markerTTL <= 0 {
		markerTTL = DefaultMarkerTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{effectTTL: effectTTL, markerTTL: markerTTL, logger: logger}
}

func (s *Sink) PlayEffect(name string, x, y float64) {
	s.mu.Lock()
	s.effects = append(s.effects, Effect{Name: name, X: x, Y: y, CreatedAt: s.now})
	s.mu.Unlock()
	s.logger.Debug("effect", zap.String("name", name), zap.Float64("x", x), zap.Float64("y", y))
}

func (s *Sink) PopDamage(text string, x, y float64) {
	s.mu.Lock()
	s.markers = append(s.markers, Marker{Text: text, X: x, Y: y, CreatedAt: s.now})
	s.mu.Unlock()
}

// Advance moves the clock forward by dt seconds and prunes expired entries.
func (s *Sink) Advance(dt float64) {
	if dt < 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now += time.Duration(dt * float64(time.Second))

	effects := s.effects[:0]
	for _, e := range s.effects {
		if s.now-e.CreatedAt < s.effectTTL {
			effects = append(effects, e)
		}
	}
	s.effects = effects

	markers := s.markers[:0]
	for _, m := range s.markers {
		if s.now-m.CreatedAt < s.markerTTL {
			markers = append(markers, m)
		}
	}
	s.markers = markers
}

// Now returns the simulated clock.
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Effects returns a copy of the live effects.
func (s *Sink) Effects() []Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Effect, len(s.effects))
	copy(out, s.effects)
	return out
}

// Markers returns a copy of the live markers.
func (s *Sink) Markers() []Marker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// Alpha returns the marker opacity at the sink's current time, fading
// linearly from 1 to 0 over the marker lifetime.
func (s *Sink) Alpha(m Marker) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	age := s.now - m.CreatedAt
	a := 1 - float64(age)/float64(s.markerTTL)
	switch {
	case a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}

// Reset drops every live entry and rewinds the clock.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = 0
	s.effects = nil
	s.markers = nil
}
