package battle

import "go.uber.org/zap"

// Feedback receives fire-and-forget presentation cues.
type Feedback interface {
	PlayEffect(name string, x, y float64)
	PopDamage(text string, x, y float64)
}

// safeFeedback keeps a misbehaving sink from touching simulation state.
type safeFeedback struct {
	sink   Feedback
	logger *zap.Logger
}

func (s safeFeedback) PlayEffect(name string, x, y float64) {
	if s.sink == nil {
		return
	}
	defer s.recover("effect")
	s.sink.PlayEffect(name, x, y)
}

func (s safeFeedback) PopDamage(text string, x, y float64) {
	if s.sink == nil {
		return
	}
	defer s.recover("damage")
	s.sink.PopDamage(text, x, y)
}

func (s safeFeedback) recover(kind string) {
	if r := recover(); r != nil {
		s.logger.Error("feedback sink panicked", zap.String("kind", kind), zap.Any("recover", r))
	}
}
