// Package engine runs the perception-to-action loop: it folds frames
// into scene memory, evaluates the rule set, resolves utterances, and
// fans the resulting events out to collaborators.
//
// The loop owns the single coarse mutex guarding scene memory and the
// identity registry. Each logical operation (one frame update plus its
// evaluation, one resolved query) holds the lock once; speech, telemetry,
// and persistence I/O always run outside it so the frame path and the
// query path cannot stall each other.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
	"github.com/jay7-tech/memo-go/identity"
	"github.com/jay7-tech/memo-go/query"
	"github.com/jay7-tech/memo-go/rules"
	"github.com/jay7-tech/memo-go/scene"
)

// Config holds the loop's cadences.
type Config struct {
	// Retention is the object max age handed to the expiry sweep.
	Retention time.Duration

	// SweepInterval is how often the frame path runs the expiry sweep.
	SweepInterval time.Duration

	// FlushInterval is how often Run persists scene state.
	FlushInterval time.Duration
}

// DefaultConfig returns the cadences used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		Retention:     10 * time.Minute,
		SweepInterval: 5 * time.Second,
		FlushInterval: 30 * time.Second,
	}
}

// Validate rejects cadences the loop cannot run with.
func (c Config) Validate() error {
	if c.Retention <= 0 {
		return fmt.Errorf("engine: Retention must be positive, got %v", c.Retention)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("engine: SweepInterval must be positive, got %v", c.SweepInterval)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("engine: FlushInterval must be positive, got %v", c.FlushInterval)
	}
	return nil
}

// Loop wires scene memory, the rules engine, the query resolver, and the
// identity registry behind one mutex.
type Loop struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	mem      *scene.Memory
	rules    *rules.Engine
	resolver *query.Resolver
	registry identity.Registry

	dispatcher *Dispatcher
	store      scene.Store

	lastSweep time.Time
}

// Option configures the loop.
type Option func(*Loop)

// WithStore attaches a persistence store for scene state.
func WithStore(store scene.Store) Option {
	return func(l *Loop) {
		l.store = store
	}
}

// WithRegistry attaches an identity registry; without one every face is
// a stranger.
func WithRegistry(registry identity.Registry) Option {
	return func(l *Loop) {
		l.registry = registry
	}
}

// NewLoop constructs the loop.
func NewLoop(cfg Config, mem *scene.Memory, ruleEngine *rules.Engine, resolver *query.Resolver, dispatcher *Dispatcher, log *zap.Logger, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Loop{
		cfg:        cfg,
		log:        log.Named("engine"),
		mem:        mem,
		rules:      ruleEngine,
		resolver:   resolver,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Hydrate loads persisted scene state. A missing or corrupt store is a
// warning and an empty start, never a startup failure.
func (l *Loop) Hydrate() {
	if l.store == nil {
		return
	}
	state, err := l.store.Load()
	if err != nil {
		l.log.Warn("could not load persisted scene state, starting empty", zap.Error(err))
		return
	}
	l.mu.Lock()
	l.mem.Hydrate(state)
	l.mu.Unlock()
	l.log.Info("hydrated scene state",
		zap.Int("objects", len(state.Objects)),
		zap.Bool("focus_mode", state.FocusMode))
}

// ProcessFrame folds one frame into the model and dispatches whatever
// events the rules produce. Total: malformed frames degrade to partial
// updates, never failures.
func (l *Loop) ProcessFrame(ctx context.Context, frame core.Frame) {
	now := frame.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	var name string
	l.mu.Lock()
	if l.registry != nil && len(frame.Embedding) > 0 {
		if match, ok := l.registry.Lookup(ctx, frame.Embedding); ok {
			name = match.Name
		}
	}
	l.mem.Update(frame, name)

	if l.lastSweep.IsZero() || now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		l.mem.Expire(now, l.cfg.Retention)
		l.lastSweep = now
	}

	events := l.rules.Evaluate(l.mem.Snapshot(), now)
	l.mu.Unlock()

	l.dispatcher.Dispatch(events)
}

// HandleUtterance resolves one utterance, applies its side effects, and
// speaks the answer. Returns the outcome so callers (console, voice) can
// surface it their own way too.
func (l *Loop) HandleUtterance(_ context.Context, utterance string) query.Outcome {
	now := time.Now()

	l.mu.Lock()
	outcome := l.resolver.ResolveAt(utterance, l.mem, now)
	switch outcome.Type {
	case query.OutcomeModeChange:
		l.mem.SetFocusMode(outcome.FocusEnabled)
	case query.OutcomeRegister:
		l.mem.RequestRegister(outcome.Name)
	case query.OutcomeSelfie:
		l.mem.RequestSelfie()
	}
	l.mu.Unlock()

	l.dispatcher.Announce(outcome.Text)
	return outcome
}

// RegisterFace enrolls a captured embedding under name. Called by the
// enrollment collaborator after it consumed a register trigger.
func (l *Loop) RegisterFace(ctx context.Context, name string, embedding []float32) error {
	if l.registry == nil {
		return fmt.Errorf("engine: no identity registry configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.registry.Register(ctx, name, embedding)
}

// ConsumeRegister hands the one-shot registration trigger to the caller.
func (l *Loop) ConsumeRegister() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mem.ConsumeRegister()
}

// ConsumeSelfie hands the one-shot selfie trigger to the caller.
func (l *Loop) ConsumeSelfie() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mem.ConsumeSelfie()
}

// Snapshot exposes a consistent scene view for the dashboard.
func (l *Loop) Snapshot() scene.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mem.Snapshot()
}

// Flush persists the scene state. The export happens under the lock, the
// store write outside it.
func (l *Loop) Flush() {
	if l.store == nil {
		return
	}
	l.mu.Lock()
	state := l.mem.Export()
	l.mu.Unlock()

	if err := l.store.Save(state); err != nil {
		l.log.Warn("failed to persist scene state", zap.Error(err))
	}
}

// Run flushes on the configured cadence until the context ends, then
// flushes one final time.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Flush()
			return
		case <-ticker.C:
			l.Flush()
		}
	}
}
