package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/sweet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_RotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweet.log")
	logger, err := NewLogger(sweet.LoggingConfig{Level: "debug", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Sugar().Infow("schema created", "name", "people")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"schema created"`)
	assert.Contains(t, string(data), `"name":"people"`)
	assert.Contains(t, string(data), `"component":"sweet"`)
}

func TestNewLogger_Levels(t *testing.T) {
	logger, err := NewLogger(sweet.LoggingConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = NewLogger(sweet.LoggingConfig{Level: "bogus"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel), "unknown level falls back to info")
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
