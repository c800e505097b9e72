package observe

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"INFO+2", slog.LevelInfo + 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLevel_InvalidFallsBackToInfo(t *testing.T) {
	got, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, DefaultLevel, got)

	f, err := NewFilterLayerFromString("loud")
	assert.Error(t, err)
	assert.Equal(t, slog.LevelInfo, f.Level())
}

func TestFilterLayer_Enabled(t *testing.T) {
	f := NewFilterLayer(slog.LevelInfo)
	ctx := context.Background()

	assert.False(t, f.Enabled(ctx, slog.LevelDebug))
	assert.True(t, f.Enabled(ctx, slog.LevelInfo))
	assert.True(t, f.Enabled(ctx, slog.LevelError))

	f.SetLevel(slog.LevelError)
	assert.False(t, f.Enabled(ctx, slog.LevelWarn))
}
