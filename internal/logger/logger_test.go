package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRespectsLevelOverride(t *testing.T) {
	log, err := New(Config{Development: true, Level: "warn"})
	require.NoError(t, err)
	require.NotNil(t, log)

	core := log.Desugar().Core()
	assert.True(t, core.Enabled(zapcore.WarnLevel))
	assert.False(t, core.Enabled(zapcore.InfoLevel))
}

func TestNewReturnsSharedInstance(t *testing.T) {
	a, err := New(Config{Development: true, Level: "warn"})
	require.NoError(t, err)
	b, err := New(Config{})
	require.NoError(t, err)
	assert.Same(t, a, b)
}
