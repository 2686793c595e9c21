package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 45*time.Minute, cfg.RulesConfig().SittingReminder)
	assert.Equal(t, 10*time.Minute, cfg.EngineConfig().Retention)
	assert.Equal(t, 5*time.Second, cfg.EngineConfig().SweepInterval)
	assert.Equal(t, time.Second, cfg.SceneConfig().PoseGrace)
	assert.Equal(t, 0.6, cfg.IdentityConfig().Threshold)
	assert.Equal(t, 5*time.Second, cfg.DedupWindow())
	assert.Equal(t, "127.0.0.1:8765", cfg.ServerConfig().Addr)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "bottle", cfg.RulesConfig().HydrationLabel)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.yaml")
	body := `
rules:
  sitting_reminder: 20m
  hydration_label: mug
engine:
  retention: 1h
server:
  enabled: false
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 20*time.Minute, cfg.RulesConfig().SittingReminder)
	assert.Equal(t, "mug", cfg.RulesConfig().HydrationLabel)
	assert.Equal(t, time.Hour, cfg.EngineConfig().Retention)
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Minute, cfg.RulesConfig().StandingReminder)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: [oops"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.SittingReminder = "not-a-duration"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules.sitting_reminder")
}

func TestValidateRejectsEmptyDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.Retention = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.retention")
}

func TestValidateRejectsUnknownEmbedder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.Embedder = "tea-leaves"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresModelForONNX(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identity.Embedder = "onnx"
	cfg.Identity.ModelPath = ""
	assert.Error(t, cfg.Validate())

	cfg.Identity.ModelPath = "models/facenet.onnx"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsDedupAboveRuleCooldowns(t *testing.T) {
	// A window longer than a rule's cooldown would swallow refires the
	// rule has legitimately re-armed.
	cfg := DefaultConfig()
	cfg.Engine.DedupWindow = "30s"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dedup_window")

	// Equal to the smallest cooldown (default focus, 10s) is allowed.
	cfg = DefaultConfig()
	cfg.Engine.DedupWindow = "10s"
	assert.NoError(t, cfg.Validate())

	// Raising the cooldowns makes room for a longer window.
	cfg = DefaultConfig()
	cfg.Engine.DedupWindow = "30s"
	cfg.Rules.FocusCooldown = "1m"
	cfg.Rules.ProximityCooldown = "1m"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules.ProximityThreshold = 2.0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Identity.Threshold = 0
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEMO_SCENE_DB", "/tmp/other.db")
	t.Setenv("MEMO_ADDR", "0.0.0.0:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/tmp/other.db", cfg.Storage.SceneDB)
	assert.Equal(t, "0.0.0.0:9000", cfg.ServerConfig().Addr)
}
