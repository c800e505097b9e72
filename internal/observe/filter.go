package observe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LevelTrace is below debug, for very chatty output.
const LevelTrace = slog.LevelDebug - 4

// DefaultLevel applies when no level, or an invalid one, is configured.
const DefaultLevel = slog.LevelInfo

// FilterLayer vetoes every event below its minimum level.
type FilterLayer struct {
	NopLayer
	level slog.LevelVar
}

func NewFilterLayer(level slog.Level) *FilterLayer {
	f := &FilterLayer{}
	f.level.Set(level)
	return f
}

// NewFilterLayerFromString parses s with ParseLevel. On error the layer
// still works, at DefaultLevel, and the parse error is returned so the
// caller can report it.
func NewFilterLayerFromString(s string) (*FilterLayer, error) {
	level, err := ParseLevel(s)
	return NewFilterLayer(level), err
}

func (f *FilterLayer) Enabled(_ context.Context, level slog.Level) bool {
	return level >= f.level.Level()
}

func (f *FilterLayer) Level() slog.Level {
	return f.level.Level()
}

// SetLevel changes the minimum level at runtime.
func (f *FilterLayer) SetLevel(level slog.Level) {
	f.level.Set(level)
}

// ParseLevel accepts trace, debug, info, warn, warning and error in any
// case, and slog's offset syntax such as "INFO+2". An empty string yields
// DefaultLevel without error.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return DefaultLevel, nil
	case "trace":
		return LevelTrace, nil
	case "warning":
		return slog.LevelWarn, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return DefaultLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
