package scene

import (
	"context"

	"github.com/kasuganosora/shuttlebattle/cache"
	"go.uber.org/zap"
)

// MessageLog keeps the newest lines of the battle message window and
// mirrors them into a cache list, newest first.
type MessageLog struct {
	lines  []string
	max    int
	all    []string
	cache  cache.Cache // optional
	key    string
	logger *zap.Logger
}

func newMessageLog(max int, c cache.Cache, key string, logger *zap.Logger) *MessageLog {
	if max <= 0 {
		max = 8
	}
	return &MessageLog{max: max, cache: c, key: key, logger: logger}
}

// Push appends a line, dropping the oldest visible one when full.
func (l *MessageLog) Push(ctx context.Context, line string) {
	l.lines = append(l.lines, line)
	if len(l.lines) > l.max {
		l.lines = l.lines[len(l.lines)-l.max:]
	}
	l.all = append(l.all, line)

	if l.cache == nil {
		return
	}
	if err := l.cache.LPush(ctx, l.key, line); err != nil {
		l.logger.Warn("message log mirror failed", zap.String("key", l.key), zap.Error(err))
		return
	}
	if err := l.cache.LTrim(ctx, l.key, 0, int64(l.max-1)); err != nil {
		l.logger.Warn("message log trim failed", zap.String("key", l.key), zap.Error(err))
	}
}

// Lines returns the visible window, oldest first.
func (l *MessageLog) Lines() []string {
	out := make([]string, len(l.lines))
	copy(out, l.lines)
	return out
}

// History returns every line pushed during the battle.
func (l *MessageLog) History() []string {
	out := make([]string, len(l.all))
	copy(out, l.all)
	return out
}
