package scene

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
)

// ObjectRecord tracks the most recent observation of one object label.
// Exactly one record exists per label: last observation wins, there is
// no multi-instance tracking.
type ObjectRecord struct {
	Label    string           `json:"label"`
	Box      core.BoundingBox `json:"box"`
	LastSeen time.Time        `json:"last_seen"`
	Position core.Position    `json:"position"`
}

// HumanState tracks the single human the companion reasons about.
// Identity is non-empty only while Present is true; absence clears it.
type HumanState struct {
	Present   bool                  `json:"present"`
	Pose      core.PoseState        `json:"pose"`
	PoseStart time.Time             `json:"pose_start"`
	Keypoints map[string]core.Point `json:"keypoints,omitempty"`
	Identity  string                `json:"identity,omitempty"`
	LastSeen  time.Time             `json:"last_seen"`
}

// Config holds the scene model's tunables. All values are validated at
// construction; an invalid value is a startup failure, not a runtime one.
type Config struct {
	// SitRatio and StandRatio bound the pose hysteresis band: a torso
	// ratio (shoulder–hip vertical separation over shoulder width) below
	// SitRatio classifies as sitting, above StandRatio as standing, and
	// anything between keeps the previous state.
	SitRatio   float64
	StandRatio float64

	// PoseGrace is how long the last known pose survives after the human
	// leaves the frame before it degrades to unknown.
	PoseGrace time.Duration
}

// DefaultConfig returns the tunables used when no config file overrides them.
func DefaultConfig() Config {
	return Config{
		SitRatio:   0.9,
		StandRatio: 1.1,
		PoseGrace:  time.Second,
	}
}

// Validate rejects configurations the model cannot run with.
func (c Config) Validate() error {
	if c.SitRatio <= 0 {
		return fmt.Errorf("scene: SitRatio must be positive, got %v", c.SitRatio)
	}
	if c.StandRatio < c.SitRatio {
		return fmt.Errorf("scene: StandRatio (%v) must be >= SitRatio (%v)", c.StandRatio, c.SitRatio)
	}
	if c.PoseGrace < 0 {
		return fmt.Errorf("scene: PoseGrace must not be negative, got %v", c.PoseGrace)
	}
	return nil
}

// Memory is the scene aggregate. Not goroutine-safe; see the package doc.
type Memory struct {
	cfg Config
	log *zap.Logger

	objects map[string]ObjectRecord
	human   HumanState

	focusMode bool

	// One-shot trigger flags set by the query resolver and consumed by
	// external collaborators.
	registerRequested bool
	registerName      string
	selfieRequested   bool

	frameWidth int
}

// NewMemory constructs an empty scene model.
func NewMemory(cfg Config, log *zap.Logger) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		cfg:        cfg,
		log:        log.Named("scene"),
		objects:    make(map[string]ObjectRecord),
		frameWidth: 640,
	}, nil
}

// Update folds one frame's perception output into the model. identity is
// the resolved name for the human region, or empty when unmatched.
//
// Labels absent from this frame keep their records untouched; removal is
// Expire's job. Update never fails: malformed detections are skipped and
// logged.
func (m *Memory) Update(frame core.Frame, identity string) {
	if frame.Width > 0 {
		m.frameWidth = frame.Width
	}
	ts := frame.Timestamp

	personDetected := false
	for _, det := range frame.Detections {
		if det.Label == "" || det.Box.W <= 0 || det.Box.H <= 0 {
			m.log.Warn("skipping malformed detection",
				zap.String("label", det.Label),
				zap.Float64("w", det.Box.W),
				zap.Float64("h", det.Box.H))
			continue
		}
		if det.Label == "person" {
			personDetected = true
		}
		m.upsertObject(det, ts)
	}

	// Presence requires the pose estimator and the object detector to
	// agree there is a person; a lone pose hit on a chair or a coat must
	// not keep identity alive.
	if frame.Pose != nil && len(frame.Pose.Keypoints) > 0 && personDetected {
		m.observeHuman(frame.Pose.Keypoints, identity, ts)
		return
	}
	m.observeAbsence(ts)
}

func (m *Memory) upsertObject(det core.Detection, ts time.Time) {
	if prev, ok := m.objects[det.Label]; ok && prev.LastSeen.After(ts) {
		// Out-of-order frame; the newer observation stays authoritative.
		return
	}
	m.objects[det.Label] = ObjectRecord{
		Label:    det.Label,
		Box:      det.Box,
		LastSeen: ts,
		Position: core.BucketPosition(det.Box, m.frameWidth),
	}
}

func (m *Memory) observeHuman(keypoints map[string]core.Point, identity string, ts time.Time) {
	m.human.Present = true
	m.human.Keypoints = copyKeypoints(keypoints)
	m.human.LastSeen = ts
	if identity != "" {
		m.human.Identity = identity
	}

	next := classifyPose(keypoints, m.human.Pose, m.cfg.SitRatio, m.cfg.StandRatio)
	if next != m.human.Pose && next != core.PoseUnknown {
		m.log.Debug("pose transition",
			zap.Stringer("from", m.human.Pose),
			zap.Stringer("to", next))
		m.human.Pose = next
		m.human.PoseStart = ts
	} else if m.human.PoseStart.IsZero() {
		m.human.PoseStart = ts
	}
}

func (m *Memory) observeAbsence(ts time.Time) {
	m.human.Present = false
	m.human.Identity = ""
	m.human.Keypoints = nil
	if m.human.Pose != core.PoseUnknown && ts.Sub(m.human.LastSeen) > m.cfg.PoseGrace {
		m.human.Pose = core.PoseUnknown
		// Keep the pose-start/last-seen invariant: the unknown stretch
		// began no later than the last real observation.
		m.human.PoseStart = m.human.LastSeen
	}
}

// Expire removes every object record with now - lastSeen > maxAge and
// returns the removed labels. The owning loop invokes it on a fixed
// cadence; the model never times itself.
func (m *Memory) Expire(now time.Time, maxAge time.Duration) []string {
	var removed []string
	for label, rec := range m.objects {
		if now.Sub(rec.LastSeen) > maxAge {
			delete(m.objects, label)
			removed = append(removed, label)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		m.log.Debug("expired stale objects", zap.Strings("labels", removed))
	}
	return removed
}

// QueryObject looks up a record by user-facing name, applying the shared
// synonym table and falling back to a partial label match. The returned
// string is the label the lookup actually matched.
func (m *Memory) QueryObject(name string) (ObjectRecord, string, bool) {
	normalized := Normalize(name)
	if rec, ok := m.objects[normalized]; ok {
		return rec, normalized, true
	}

	// Very short captures ("me", "it") skip the substring fallback;
	// matching them hits unrelated labels like "remote".
	if len(normalized) < 3 {
		return ObjectRecord{}, normalized, false
	}

	// Partial match over sorted labels so ambiguous lookups are stable.
	labels := make([]string, 0, len(m.objects))
	for label := range m.objects {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		if containsFold(label, normalized) || containsFold(normalized, label) {
			return m.objects[label], label, true
		}
	}
	return ObjectRecord{}, normalized, false
}

// VisibleLabels returns the labels seen within freshness of now, sorted.
func (m *Memory) VisibleLabels(now time.Time, freshness time.Duration) []string {
	var labels []string
	for label, rec := range m.objects {
		if now.Sub(rec.LastSeen) <= freshness {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// ObjectCount returns how many distinct labels are tracked.
func (m *Memory) ObjectCount() int {
	return len(m.objects)
}

// Human returns a copy of the tracked human state.
func (m *Memory) Human() HumanState {
	h := m.human
	h.Keypoints = copyKeypoints(m.human.Keypoints)
	return h
}

// FrameWidth returns the width of the most recent frame.
func (m *Memory) FrameWidth() int {
	return m.frameWidth
}

// FocusMode reports the operator's focus flag.
func (m *Memory) FocusMode() bool {
	return m.focusMode
}

// SetFocusMode flips the operator's focus flag.
func (m *Memory) SetFocusMode(enabled bool) {
	m.focusMode = enabled
}

// RequestRegister arms the one-shot face-registration trigger.
func (m *Memory) RequestRegister(name string) {
	m.registerRequested = true
	m.registerName = name
}

// ConsumeRegister returns and clears the registration trigger.
func (m *Memory) ConsumeRegister() (string, bool) {
	if !m.registerRequested {
		return "", false
	}
	m.registerRequested = false
	name := m.registerName
	m.registerName = ""
	return name, true
}

// RequestSelfie arms the one-shot selfie trigger.
func (m *Memory) RequestSelfie() {
	m.selfieRequested = true
}

// ConsumeSelfie returns and clears the selfie trigger.
func (m *Memory) ConsumeSelfie() bool {
	requested := m.selfieRequested
	m.selfieRequested = false
	return requested
}

// Snapshot captures a consistent read-only view for rule evaluation.
type Snapshot struct {
	Objects    []ObjectRecord
	Human      HumanState
	FocusMode  bool
	FrameWidth int
}

// Snapshot copies the state the rules engine reasons over. Taken under
// the same lock scope as the evaluation that consumes it.
func (m *Memory) Snapshot() Snapshot {
	objects := make([]ObjectRecord, 0, len(m.objects))
	for _, rec := range m.objects {
		objects = append(objects, rec)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Label < objects[j].Label })
	return Snapshot{
		Objects:    objects,
		Human:      m.Human(),
		FocusMode:  m.focusMode,
		FrameWidth: m.frameWidth,
	}
}

func copyKeypoints(src map[string]core.Point) map[string]core.Point {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]core.Point, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
