// Package rules watches scene memory for actionable conditions and turns
// them into events.
//
// Evaluation is pure with respect to its inputs except for the cooldown
// timers the engine owns; firing a rule refreshes that rule's timer and
// nothing else. Events come out in fixed rule-priority order so two
// conditions true in the same tick are always spoken in the same relative
// order.
package rules

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
	"github.com/jay7-tech/memo-go/scene"
)

// Config externalizes every rule timing and ratio. Nothing in the engine
// is a literal; an out-of-range value fails at construction.
type Config struct {
	// ObjectFreshness bounds how recently a label must have been seen to
	// count as visible for the transition, focus, and hydration rules.
	ObjectFreshness time.Duration

	// SittingReminder and StandingReminder are the posture durations
	// after which the engine speaks up.
	SittingReminder  time.Duration
	StandingReminder time.Duration

	// PostureRepeat is the re-reminder interval once a posture reminder
	// has fired. A pose change resets it outright.
	PostureRepeat time.Duration

	// FocusCooldown throttles the phone-distraction scolding.
	FocusCooldown time.Duration

	// ProximityThreshold is the shoulder span, as a fraction of frame
	// width, beyond which the user is too close to the screen.
	ProximityThreshold float64
	ProximityCooldown  time.Duration

	// GreetingRegreet is how long an identity must have been gone before
	// its reappearance earns another greeting.
	GreetingRegreet time.Duration

	// HydrationLabel is the designated consumable ("bottle"); when it has
	// been out of sight beyond HydrationTimeout with the user present,
	// the engine reminds them, at most once per HydrationCooldown.
	HydrationLabel    string
	HydrationTimeout  time.Duration
	HydrationCooldown time.Duration
}

// DefaultConfig returns the timings used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		ObjectFreshness:    2 * time.Second,
		SittingReminder:    45 * time.Minute,
		StandingReminder:   30 * time.Minute,
		PostureRepeat:      5 * time.Minute,
		FocusCooldown:      10 * time.Second,
		ProximityThreshold: 0.55,
		ProximityCooldown:  30 * time.Second,
		GreetingRegreet:    5 * time.Minute,
		HydrationLabel:     "bottle",
		HydrationTimeout:   30 * time.Minute,
		HydrationCooldown:  30 * time.Minute,
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"ObjectFreshness":   c.ObjectFreshness,
		"SittingReminder":   c.SittingReminder,
		"StandingReminder":  c.StandingReminder,
		"PostureRepeat":     c.PostureRepeat,
		"FocusCooldown":     c.FocusCooldown,
		"ProximityCooldown": c.ProximityCooldown,
		"GreetingRegreet":   c.GreetingRegreet,
		"HydrationTimeout":  c.HydrationTimeout,
		"HydrationCooldown": c.HydrationCooldown,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("rules: %s must be positive, got %v", name, d)
		}
	}
	if c.ProximityThreshold <= 0 || c.ProximityThreshold >= 1 {
		return fmt.Errorf("rules: ProximityThreshold must be in (0, 1), got %v", c.ProximityThreshold)
	}
	if c.HydrationLabel == "" {
		return fmt.Errorf("rules: HydrationLabel must not be empty")
	}
	return nil
}

// Engine evaluates the rule set against scene snapshots. Its cooldown
// state is private; no other component reads or writes it.
type Engine struct {
	cfg Config
	log *zap.Logger

	prevVisible map[string]struct{}
	prevPose    core.PoseState
	prevName    string

	lastPostureAlert   time.Time
	lastFocusAlert     time.Time
	lastProximityAlert time.Time
	lastHydrationAlert time.Time

	lastGreet          map[string]time.Time
	lastConsumableSeen time.Time
}

// NewEngine constructs a rules engine with validated config.
func NewEngine(cfg Config, log *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:         cfg,
		log:         log.Named("rules"),
		prevVisible: make(map[string]struct{}),
		lastGreet:   make(map[string]time.Time),
	}, nil
}

// Evaluate runs every rule against the snapshot and returns the events to
// dispatch, in fixed rule order: object transitions, posture duration,
// focus distraction, proximity, greeting, hydration.
func (e *Engine) Evaluate(snap scene.Snapshot, now time.Time) []core.Event {
	var events []core.Event
	events = append(events, e.checkTransitions(snap, now)...)
	events = append(events, e.checkPosture(snap, now)...)
	events = append(events, e.checkFocus(snap, now)...)
	events = append(events, e.checkProximity(snap, now)...)
	events = append(events, e.checkGreeting(snap, now)...)
	events = append(events, e.checkHydration(snap, now)...)
	return events
}

// visibleSet collects the labels seen within the freshness window.
// Snapshot objects are sorted by label, so iteration order is stable.
func (e *Engine) visibleSet(snap scene.Snapshot, now time.Time) ([]string, map[string]struct{}) {
	var ordered []string
	set := make(map[string]struct{})
	for _, rec := range snap.Objects {
		if now.Sub(rec.LastSeen) <= e.cfg.ObjectFreshness {
			ordered = append(ordered, rec.Label)
			set[rec.Label] = struct{}{}
		}
	}
	return ordered, set
}

func (e *Engine) checkTransitions(snap scene.Snapshot, now time.Time) []core.Event {
	ordered, visible := e.visibleSet(snap, now)

	var events []core.Event
	for _, label := range ordered {
		if _, ok := e.prevVisible[label]; !ok {
			events = append(events, core.Log(fmt.Sprintf("object appeared: %s", label), now))
		}
	}

	var gone []string
	for label := range e.prevVisible {
		if _, ok := visible[label]; !ok {
			gone = append(gone, label)
		}
	}
	sort.Strings(gone)
	for _, label := range gone {
		events = append(events, core.Log(fmt.Sprintf("object disappeared: %s", label), now))
	}

	e.prevVisible = visible
	return events
}

func (e *Engine) checkPosture(snap scene.Snapshot, now time.Time) []core.Event {
	if !snap.Human.Present {
		e.prevPose = core.PoseUnknown
		return nil
	}

	pose := snap.Human.Pose
	if pose != e.prevPose {
		if e.prevPose != core.PoseUnknown && pose != core.PoseUnknown {
			// Fresh posture episode; the reminder clock starts over.
			e.lastPostureAlert = time.Time{}
		}
		e.prevPose = pose
	}

	if !e.lastPostureAlert.IsZero() && now.Sub(e.lastPostureAlert) < e.cfg.PostureRepeat {
		return nil
	}

	duration := now.Sub(snap.Human.PoseStart)
	switch {
	case pose == core.PoseSitting && duration > e.cfg.SittingReminder:
		e.lastPostureAlert = now
		return []core.Event{core.Speak("You have been sitting for a while. Time to stretch and move around!", now)}
	case pose == core.PoseStanding && duration > e.cfg.StandingReminder:
		e.lastPostureAlert = now
		return []core.Event{core.Speak("You have been standing for a while. You can take a seat now.", now)}
	}
	return nil
}

func (e *Engine) checkFocus(snap scene.Snapshot, now time.Time) []core.Event {
	if !snap.FocusMode {
		return nil
	}
	_, visible := e.visibleSet(snap, now)
	if _, ok := visible["cell phone"]; !ok {
		return nil
	}
	if !e.lastFocusAlert.IsZero() && now.Sub(e.lastFocusAlert) < e.cfg.FocusCooldown {
		return nil
	}
	e.lastFocusAlert = now
	return []core.Event{core.Speak("I see your phone. Put it away and stay focused!", now)}
}

func (e *Engine) checkProximity(snap scene.Snapshot, now time.Time) []core.Event {
	if !snap.Human.Present || snap.FrameWidth <= 0 {
		return nil
	}
	span, ok := scene.ShoulderSpan(snap.Human.Keypoints)
	if !ok {
		return nil
	}
	if span/float64(snap.FrameWidth) <= e.cfg.ProximityThreshold {
		return nil
	}
	if !e.lastProximityAlert.IsZero() && now.Sub(e.lastProximityAlert) < e.cfg.ProximityCooldown {
		return nil
	}
	e.lastProximityAlert = now
	return []core.Event{core.Speak("You are too close to the screen. Please move back a bit.", now)}
}

func (e *Engine) checkGreeting(snap scene.Snapshot, now time.Time) []core.Event {
	name := snap.Human.Identity
	defer func() { e.prevName = name }()

	if name == "" || name == e.prevName {
		return nil
	}

	if last, ok := e.lastGreet[name]; ok && now.Sub(last) <= e.cfg.GreetingRegreet {
		// Came back too soon after the last greeting; stay quiet but keep
		// the clock so a real absence still earns one.
		return nil
	}
	e.lastGreet[name] = now
	e.log.Info("greeting resolved identity", zap.String("name", name))
	return []core.Event{core.Speak(fmt.Sprintf("%s, %s! Welcome back.", daypartGreeting(now), name), now)}
}

func (e *Engine) checkHydration(snap scene.Snapshot, now time.Time) []core.Event {
	_, visible := e.visibleSet(snap, now)
	if _, ok := visible[e.cfg.HydrationLabel]; ok {
		e.lastConsumableSeen = now
		return nil
	}

	// Only remind once the consumable has actually been observed; a desk
	// that never had a bottle should not nag about one.
	if !snap.Human.Present || e.lastConsumableSeen.IsZero() {
		return nil
	}
	if now.Sub(e.lastConsumableSeen) <= e.cfg.HydrationTimeout {
		return nil
	}
	if !e.lastHydrationAlert.IsZero() && now.Sub(e.lastHydrationAlert) < e.cfg.HydrationCooldown {
		return nil
	}
	e.lastHydrationAlert = now
	return []core.Event{core.Speak("Don't forget to drink some water! Stay hydrated.", now)}
}

// daypartGreeting picks a salutation from the wall-clock hour.
func daypartGreeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "Good morning"
	case hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}
