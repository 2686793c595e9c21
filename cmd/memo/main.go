// Command memo runs the desktop companion's reasoning core. It reads
// perception frames and utterances as JSON lines on stdin, keeps the
// scene model, and speaks through stdout and the websocket event
// stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jay7-tech/memo-go/config"
	"github.com/jay7-tech/memo-go/engine"
	"github.com/jay7-tech/memo-go/identity"
	chromemstore "github.com/jay7-tech/memo-go/identity/store/chromem"
	"github.com/jay7-tech/memo-go/query"
	"github.com/jay7-tech/memo-go/rules"
	"github.com/jay7-tech/memo-go/scene"
	sqlitestore "github.com/jay7-tech/memo-go/scene/store/sqlite"
	"github.com/jay7-tech/memo-go/server"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "memo",
	Short: "MEMO - a perception-to-action desktop companion",
	Long: `MEMO watches your desk through a perception front-end and remembers
what it sees: objects and where they were, who is present, how long
they have been sitting. Ask it questions ("where is my bottle?") and
it answers from scene memory; leave it running and it nudges you to
stretch, hydrate, and stay focused.

Frames and utterances arrive as JSON lines on stdin; answers and
reminders go to stdout and to the websocket event stream.`,
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "memo.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// .env is optional; it carries the same overrides the environment does.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mem, err := scene.NewMemory(cfg.SceneConfig(), log)
	if err != nil {
		return err
	}
	ruleEngine, err := rules.NewEngine(cfg.RulesConfig(), log)
	if err != nil {
		return err
	}
	resolver := query.NewResolver(log)

	var registry identity.Registry
	registry, err = chromemstore.New(cfg.Identity.DatabasePath, cfg.IdentityConfig(), log)
	if err != nil {
		return fmt.Errorf("open identity registry: %w", err)
	}
	defer registry.Close()

	embedder, err := newEmbedder(cfg.Identity)
	if err != nil {
		return err
	}

	hub := server.NewHub(log)
	go hub.Run()

	dispatcher, err := engine.NewDispatcher(consoleSpeaker{}, cfg.DedupWindow(), log, hub)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	opts := []engine.Option{engine.WithRegistry(registry)}
	if cfg.Storage.SceneDB != "" {
		store, err := sqlitestore.New(cfg.Storage.SceneDB, log)
		if err != nil {
			return fmt.Errorf("open scene store: %w", err)
		}
		defer store.Close()
		opts = append(opts, engine.WithStore(store))
	}

	loop, err := engine.NewLoop(cfg.EngineConfig(), mem, ruleEngine, resolver, dispatcher, log, opts...)
	if err != nil {
		return err
	}
	loop.Hydrate()
	go loop.Run(ctx)

	if cfg.Server.Enabled {
		srv, err := server.New(cfg.ServerConfig(), loop, hub, log)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Error("http server failed", zap.Error(err))
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	feed := newFeed(loop, dispatcher, embedder, log)
	if err := feed.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info("shutting down")
	loop.Flush()
	return nil
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	// Logs go to stderr; stdout is the speech channel.
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// consoleSpeaker prints speech to stdout, where the perception
// front-end picks it up for TTS.
type consoleSpeaker struct{}

func (consoleSpeaker) Speak(text string) {
	fmt.Println(text)
}
