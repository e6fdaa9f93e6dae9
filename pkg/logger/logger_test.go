package logger

import (
	"testing"

	"github.com/limaJavier/timetable-engine/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	cases := map[string]struct {
		cfg   config.LogConfig
		level zapcore.Level
	}{
		"json":    {cfg: config.LogConfig{Level: "info", Format: "json"}, level: zapcore.InfoLevel},
		"console": {cfg: config.LogConfig{Level: "debug", Format: "console"}, level: zapcore.DebugLevel},
		"warn":    {cfg: config.LogConfig{Level: "warn"}, level: zapcore.WarnLevel},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			logger, err := NewLogger(tc.cfg)

			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tc.level))
			assert.False(t, logger.Core().Enabled(tc.level-1))
		})
	}

	t.Run("Unknown level", func(t *testing.T) {
		_, err := NewLogger(config.LogConfig{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})
}
