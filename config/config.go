// Package config loads the companion's YAML configuration and turns it
// into the typed configs the individual packages consume. Durations are
// written as Go duration strings ("45m", "10s"); Validate parses every
// field up front so a typo fails at startup, not mid-session.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jay7-tech/memo-go/engine"
	"github.com/jay7-tech/memo-go/identity"
	"github.com/jay7-tech/memo-go/rules"
	"github.com/jay7-tech/memo-go/scene"
	"github.com/jay7-tech/memo-go/server"
)

// Config is the on-disk configuration shape.
type Config struct {
	Scene    SceneConfig    `yaml:"scene"`
	Rules    RulesConfig    `yaml:"rules"`
	Identity IdentityConfig `yaml:"identity"`
	Engine   EngineConfig   `yaml:"engine"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`

	parsed parsedConfig
}

// SceneConfig tunes the pose classifier.
type SceneConfig struct {
	SitRatio   float64 `yaml:"sit_ratio"`
	StandRatio float64 `yaml:"stand_ratio"`
	PoseGrace  string  `yaml:"pose_grace"`
}

// RulesConfig tunes rule timing and thresholds.
type RulesConfig struct {
	ObjectFreshness    string  `yaml:"object_freshness"`
	SittingReminder    string  `yaml:"sitting_reminder"`
	StandingReminder   string  `yaml:"standing_reminder"`
	PostureRepeat      string  `yaml:"posture_repeat"`
	FocusCooldown      string  `yaml:"focus_cooldown"`
	ProximityThreshold float64 `yaml:"proximity_threshold"`
	ProximityCooldown  string  `yaml:"proximity_cooldown"`
	GreetingRegreet    string  `yaml:"greeting_regreet"`
	HydrationLabel     string  `yaml:"hydration_label"`
	HydrationTimeout   string  `yaml:"hydration_timeout"`
	HydrationCooldown  string  `yaml:"hydration_cooldown"`
}

// IdentityConfig tunes face matching and picks the embedder backend.
type IdentityConfig struct {
	Threshold  float64 `yaml:"threshold"`
	Dimensions int     `yaml:"dimensions"`

	// Embedder is "mock" or "onnx".
	Embedder string `yaml:"embedder"`

	// ModelPath and LibraryPath only matter for the onnx embedder.
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`

	// DatabasePath persists enrollments; empty keeps them in memory.
	DatabasePath string `yaml:"database_path"`
}

// EngineConfig tunes the loop cadences.
type EngineConfig struct {
	Retention     string `yaml:"retention"`
	SweepInterval string `yaml:"sweep_interval"`
	FlushInterval string `yaml:"flush_interval"`
	DedupWindow   string `yaml:"dedup_window"`
}

// ServerConfig tunes the HTTP listener.
type ServerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Addr        string `yaml:"addr"`
	ReadTimeout string `yaml:"read_timeout"`
}

// StorageConfig points at the scene database.
type StorageConfig struct {
	// SceneDB is the SQLite path; empty disables scene persistence.
	SceneDB string `yaml:"scene_db"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

type parsedConfig struct {
	scene       scene.Config
	rules       rules.Config
	identity    identity.Config
	engine      engine.Config
	server      server.Config
	dedupWindow time.Duration
	validated   bool
}

// DefaultConfig mirrors the package-level defaults.
func DefaultConfig() *Config {
	return &Config{
		Scene: SceneConfig{
			SitRatio:   0.9,
			StandRatio: 1.1,
			PoseGrace:  "1s",
		},
		Rules: RulesConfig{
			ObjectFreshness:    "2s",
			SittingReminder:    "45m",
			StandingReminder:   "30m",
			PostureRepeat:      "5m",
			FocusCooldown:      "10s",
			ProximityThreshold: 0.55,
			ProximityCooldown:  "30s",
			GreetingRegreet:    "5m",
			HydrationLabel:     "bottle",
			HydrationTimeout:   "30m",
			HydrationCooldown:  "30m",
		},
		Identity: IdentityConfig{
			Threshold:    0.6,
			Dimensions:   512,
			Embedder:     "mock",
			DatabasePath: "data/faces",
		},
		Engine: EngineConfig{
			Retention:     "10m",
			SweepInterval: "5s",
			FlushInterval: "30s",
			DedupWindow:   "5s",
		},
		Server: ServerConfig{
			Enabled:     true,
			Addr:        "127.0.0.1:8765",
			ReadTimeout: "60s",
		},
		Storage: StorageConfig{
			SceneDB: "data/scene.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error; the defaults run fine on their own.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the file for the
// deployment-specific paths.
func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("MEMO_SCENE_DB"); path != "" {
		c.Storage.SceneDB = path
	}
	if path := os.Getenv("MEMO_FACES_DB"); path != "" {
		c.Identity.DatabasePath = path
	}
	if addr := os.Getenv("MEMO_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if model := os.Getenv("MEMO_FACE_MODEL"); model != "" {
		c.Identity.ModelPath = model
	}
	if level := os.Getenv("MEMO_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate parses every duration and runs each package's own validation.
// It must succeed before the typed accessors are used.
func (c *Config) Validate() error {
	durs := durationParser{}

	sceneCfg := scene.Config{
		SitRatio:   c.Scene.SitRatio,
		StandRatio: c.Scene.StandRatio,
		PoseGrace:  durs.parse("scene.pose_grace", c.Scene.PoseGrace),
	}
	rulesCfg := rules.Config{
		ObjectFreshness:    durs.parse("rules.object_freshness", c.Rules.ObjectFreshness),
		SittingReminder:    durs.parse("rules.sitting_reminder", c.Rules.SittingReminder),
		StandingReminder:   durs.parse("rules.standing_reminder", c.Rules.StandingReminder),
		PostureRepeat:      durs.parse("rules.posture_repeat", c.Rules.PostureRepeat),
		FocusCooldown:      durs.parse("rules.focus_cooldown", c.Rules.FocusCooldown),
		ProximityThreshold: c.Rules.ProximityThreshold,
		ProximityCooldown:  durs.parse("rules.proximity_cooldown", c.Rules.ProximityCooldown),
		GreetingRegreet:    durs.parse("rules.greeting_regreet", c.Rules.GreetingRegreet),
		HydrationLabel:     c.Rules.HydrationLabel,
		HydrationTimeout:   durs.parse("rules.hydration_timeout", c.Rules.HydrationTimeout),
		HydrationCooldown:  durs.parse("rules.hydration_cooldown", c.Rules.HydrationCooldown),
	}
	identityCfg := identity.Config{
		Threshold:  c.Identity.Threshold,
		Dimensions: c.Identity.Dimensions,
	}
	engineCfg := engine.Config{
		Retention:     durs.parse("engine.retention", c.Engine.Retention),
		SweepInterval: durs.parse("engine.sweep_interval", c.Engine.SweepInterval),
		FlushInterval: durs.parse("engine.flush_interval", c.Engine.FlushInterval),
	}
	serverCfg := server.Config{
		Addr:        c.Server.Addr,
		ReadTimeout: durs.parse("server.read_timeout", c.Server.ReadTimeout),
	}
	dedup := durs.parse("engine.dedup_window", c.Engine.DedupWindow)

	if durs.err != nil {
		return durs.err
	}

	if err := sceneCfg.Validate(); err != nil {
		return err
	}
	if err := rulesCfg.Validate(); err != nil {
		return err
	}
	if err := identityCfg.Validate(); err != nil {
		return err
	}
	if err := engineCfg.Validate(); err != nil {
		return err
	}
	if c.Server.Enabled {
		if err := serverCfg.Validate(); err != nil {
			return err
		}
	}
	switch c.Identity.Embedder {
	case "mock":
	case "onnx":
		if c.Identity.ModelPath == "" {
			return fmt.Errorf("config: identity.model_path is required for the onnx embedder")
		}
	default:
		return fmt.Errorf("config: identity.embedder must be \"mock\" or \"onnx\", got %q", c.Identity.Embedder)
	}
	if dedup < 0 {
		return fmt.Errorf("config: engine.dedup_window must not be negative, got %v", dedup)
	}
	// The dedup window must stay below every rule cooldown, or the
	// dispatcher would silence refires the rules have re-armed.
	if min := smallestCooldown(rulesCfg); dedup > min {
		return fmt.Errorf("config: engine.dedup_window (%v) exceeds the smallest rule cooldown (%v)", dedup, min)
	}

	c.parsed = parsedConfig{
		scene:       sceneCfg,
		rules:       rulesCfg,
		identity:    identityCfg,
		engine:      engineCfg,
		server:      serverCfg,
		dedupWindow: dedup,
		validated:   true,
	}
	return nil
}

// SceneConfig returns the typed scene config. Valid after Validate.
func (c *Config) SceneConfig() scene.Config { return c.parsed.scene }

// RulesConfig returns the typed rules config. Valid after Validate.
func (c *Config) RulesConfig() rules.Config { return c.parsed.rules }

// IdentityConfig returns the typed matcher config. Valid after Validate.
func (c *Config) IdentityConfig() identity.Config { return c.parsed.identity }

// EngineConfig returns the typed loop config. Valid after Validate.
func (c *Config) EngineConfig() engine.Config { return c.parsed.engine }

// ServerConfig returns the typed server config. Valid after Validate.
func (c *Config) ServerConfig() server.Config { return c.parsed.server }

// DedupWindow returns the announcement dedup window. Valid after Validate.
func (c *Config) DedupWindow() time.Duration { return c.parsed.dedupWindow }

// smallestCooldown returns the shortest interval after which any rule may
// legitimately repeat itself.
func smallestCooldown(cfg rules.Config) time.Duration {
	min := cfg.FocusCooldown
	for _, d := range []time.Duration{
		cfg.ProximityCooldown,
		cfg.PostureRepeat,
		cfg.GreetingRegreet,
		cfg.HydrationCooldown,
	} {
		if d < min {
			min = d
		}
	}
	return min
}

// durationParser accumulates the first parse failure so Validate can
// convert a whole struct without an error check per field.
type durationParser struct {
	err error
}

func (p *durationParser) parse(field, value string) time.Duration {
	if p.err != nil {
		return 0
	}
	if value == "" {
		p.err = fmt.Errorf("config: %s is required", field)
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		p.err = fmt.Errorf("config: %s: %w", field, err)
		return 0
	}
	return d
}
