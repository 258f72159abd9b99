package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("test.output")
	log.Info("test message", "key", "value")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "key=value")
	assert.Contains(t, output, "subsystem=test.output")
}

func TestSetOutput_ExistingLogger(t *testing.T) {
	log := Logger("test.existing")

	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log.Info("after switch", "key", "value")
	assert.Contains(t, buf.String(), "after switch")
}

func TestParseLevelConfig(t *testing.T) {
	cfg := &Config{DefaultLevel: slog.LevelInfo, SubsystemLevels: map[string]slog.Level{}}
	parseLevelConfig(cfg, "nat=debug, discovery.lan=error ,warn,bogus=loud")

	assert.Equal(t, slog.LevelWarn, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("nat"))
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("nat.punch"), "子系统应回退到父级")
	assert.Equal(t, slog.LevelError, cfg.LevelForSubsystem("discovery.lan"))
	assert.Equal(t, slog.LevelWarn, cfg.LevelForSubsystem("relay"))
	_, ok := cfg.SubsystemLevels["bogus"]
	assert.False(t, ok)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "relay=debug,error")
	t.Setenv(EnvLogFormat, "JSON")
	ResetConfig()
	defer ResetConfig()

	cfg := ConfigFromEnv()
	require.NotNil(t, cfg)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, slog.LevelError, cfg.DefaultLevel)
	assert.Equal(t, slog.LevelDebug, cfg.LevelForSubsystem("relay"))
}

func TestSetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetOutput(buf)
	defer SetOutput(os.Stderr)

	log := Logger("test.level")
	child := log.With("peer", 7)

	SetLevel("test.level", slog.LevelError)
	child.Warn("hidden")
	assert.Empty(t, buf.String(), "派生 Logger 也应遵循新级别")

	SetLevel("test.level", slog.LevelDebug)
	child.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "peer=7")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}
