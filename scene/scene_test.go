package scene

import (
	"testing"
	"time"

	"github.com/jay7-tech/memo-go/core"
)

var baseTime = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	mem, err := NewMemory(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return mem
}

func detection(label string, x float64) core.Detection {
	return core.Detection{
		Label:      label,
		Box:        core.BoundingBox{X: x, Y: 100, W: 50, H: 50},
		Confidence: 0.9,
	}
}

func keypointsWithRatio(hipY float64) map[string]core.Point {
	return map[string]core.Point{
		core.KeypointLeftShoulder:  {X: 100, Y: 100},
		core.KeypointRightShoulder: {X: 200, Y: 100},
		core.KeypointLeftHip:       {X: 110, Y: hipY},
		core.KeypointRightHip:      {X: 190, Y: hipY},
	}
}

// Shoulder width is 100, so hip at Y=150 gives ratio 0.5 (sitting),
// Y=250 gives 1.5 (standing), Y=200 gives 1.0 (inside the band).
func sittingKeypoints() map[string]core.Point  { return keypointsWithRatio(150) }
func standingKeypoints() map[string]core.Point { return keypointsWithRatio(250) }
func ambiguousKeypoints() map[string]core.Point { return keypointsWithRatio(200) }

func humanFrame(ts time.Time, keypoints map[string]core.Point) core.Frame {
	return core.Frame{
		Detections: []core.Detection{{
			Label:      "person",
			Box:        core.BoundingBox{X: 200, Y: 50, W: 200, H: 400},
			Confidence: 0.95,
		}},
		Pose:      &core.PoseEstimate{Keypoints: keypoints},
		Timestamp: ts,
		Width:     640,
	}
}

func emptyFrame(ts time.Time) core.Frame {
	return core.Frame{Timestamp: ts, Width: 640}
}

func TestUpdateTracksObjects(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{
			detection("bottle", 10),
			detection("laptop", 300),
			detection("cell phone", 600),
		},
		Timestamp: baseTime,
		Width:     640,
	}, "")

	if got := mem.ObjectCount(); got != 3 {
		t.Fatalf("ObjectCount = %d, want 3", got)
	}

	rec, label, ok := mem.QueryObject("bottle")
	if !ok {
		t.Fatal("bottle not found")
	}
	if label != "bottle" {
		t.Errorf("matched label = %q, want bottle", label)
	}
	if rec.Position != core.PositionLeft {
		t.Errorf("bottle position = %v, want left", rec.Position)
	}

	if rec, _, ok := mem.QueryObject("laptop"); !ok || rec.Position != core.PositionCenter {
		t.Errorf("laptop position = %v (found=%v), want center", rec.Position, ok)
	}
	if rec, _, ok := mem.QueryObject("cell phone"); !ok || rec.Position != core.PositionRight {
		t.Errorf("cell phone position = %v (found=%v), want right", rec.Position, ok)
	}
}

func TestQueryObjectSynonymsAndPartialMatch(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("bottle", 10), detection("cell phone", 400)},
		Timestamp:  baseTime,
	}, "")

	// Synonym table: "water" resolves to the bottle record.
	if _, label, ok := mem.QueryObject("water"); !ok || label != "bottle" {
		t.Errorf("QueryObject(water) = %q, %v; want bottle, true", label, ok)
	}
	// Article stripping.
	if _, label, ok := mem.QueryObject("my phone"); !ok || label != "cell phone" {
		t.Errorf("QueryObject(my phone) = %q, %v; want cell phone, true", label, ok)
	}
	// Partial match falls back to substring lookup.
	if _, label, ok := mem.QueryObject("bot"); !ok || label != "bottle" {
		t.Errorf("QueryObject(bot) = %q, %v; want bottle, true", label, ok)
	}
	if _, _, ok := mem.QueryObject("unicorn"); ok {
		t.Error("QueryObject(unicorn) found a record, want miss")
	}
}

func TestQueryObjectIgnoresShortCaptures(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("remote", 10)},
		Timestamp:  baseTime,
	}, "")

	// "me" is a substring of "remote" but far too short to mean it.
	if _, label, ok := mem.QueryObject("me"); ok {
		t.Errorf("QueryObject(me) matched %q, want miss", label)
	}
	if _, _, ok := mem.QueryObject("it"); ok {
		t.Error("QueryObject(it) found a record, want miss")
	}
	// Three characters is enough to mean the label.
	if _, label, ok := mem.QueryObject("rem"); !ok || label != "remote" {
		t.Errorf("QueryObject(rem) = %q, %v; want remote, true", label, ok)
	}
}

func TestUpdateSkipsMalformedDetections(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{
			{Label: "", Box: core.BoundingBox{W: 10, H: 10}},
			{Label: "ghost", Box: core.BoundingBox{W: 0, H: 10}},
			detection("bottle", 10),
		},
		Timestamp: baseTime,
	}, "")

	if got := mem.ObjectCount(); got != 1 {
		t.Fatalf("ObjectCount = %d, want 1 (malformed detections skipped)", got)
	}
}

func TestLastSeenStaysMonotonic(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("bottle", 10)},
		Timestamp:  baseTime,
		Width:      640,
	}, "")

	// A frame from the past must not move LastSeen backwards, and its
	// stale box must not displace the newer position either.
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("bottle", 600)},
		Timestamp:  baseTime.Add(-10 * time.Second),
		Width:      640,
	}, "")

	rec, _, _ := mem.QueryObject("bottle")
	if !rec.LastSeen.Equal(baseTime) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, baseTime)
	}
	if rec.Position != core.PositionLeft {
		t.Errorf("Position = %v, want left (stale frame must not move the record)", rec.Position)
	}
	if rec.Box.X != 10 {
		t.Errorf("Box.X = %v, want 10 (stale frame must not replace the box)", rec.Box.X)
	}
}

func TestPresenceRequiresPoseAndPersonDetection(t *testing.T) {
	mem := newTestMemory(t)

	// Pose keypoints without a person detection: a coat on a chair.
	mem.Update(core.Frame{
		Pose:      &core.PoseEstimate{Keypoints: sittingKeypoints()},
		Timestamp: baseTime,
	}, "")
	if mem.Human().Present {
		t.Error("present after pose-only frame, want absent")
	}

	// Person detection without pose keypoints is also not presence.
	mem.Update(core.Frame{
		Detections: []core.Detection{{Label: "person", Box: core.BoundingBox{W: 100, H: 300}}},
		Timestamp:  baseTime.Add(time.Second),
	}, "")
	if mem.Human().Present {
		t.Error("present after detection-only frame, want absent")
	}

	mem.Update(humanFrame(baseTime.Add(2*time.Second), sittingKeypoints()), "")
	if !mem.Human().Present {
		t.Error("absent after full frame, want present")
	}
}

func TestPoseClassificationAndHysteresis(t *testing.T) {
	mem := newTestMemory(t)

	mem.Update(humanFrame(baseTime, sittingKeypoints()), "")
	human := mem.Human()
	if human.Pose != core.PoseSitting {
		t.Fatalf("pose = %v, want sitting", human.Pose)
	}
	if !human.PoseStart.Equal(baseTime) {
		t.Errorf("PoseStart = %v, want %v", human.PoseStart, baseTime)
	}

	// Inside the hysteresis band the previous state holds and the start
	// time is untouched.
	mem.Update(humanFrame(baseTime.Add(time.Second), ambiguousKeypoints()), "")
	human = mem.Human()
	if human.Pose != core.PoseSitting {
		t.Errorf("pose after ambiguous frame = %v, want sitting", human.Pose)
	}
	if !human.PoseStart.Equal(baseTime) {
		t.Errorf("PoseStart moved on ambiguous frame: %v", human.PoseStart)
	}

	// A real transition resets the start time.
	transition := baseTime.Add(2 * time.Second)
	mem.Update(humanFrame(transition, standingKeypoints()), "")
	human = mem.Human()
	if human.Pose != core.PoseStanding {
		t.Errorf("pose = %v, want standing", human.Pose)
	}
	if !human.PoseStart.Equal(transition) {
		t.Errorf("PoseStart = %v, want %v", human.PoseStart, transition)
	}
}

func TestAbsenceClearsIdentityAndDegradesPose(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(humanFrame(baseTime, sittingKeypoints()), "Alice")

	human := mem.Human()
	if human.Identity != "Alice" {
		t.Fatalf("identity = %q, want Alice", human.Identity)
	}

	// Identity clears on the first absent frame; pose survives the grace
	// window.
	withinGrace := baseTime.Add(500 * time.Millisecond)
	mem.Update(emptyFrame(withinGrace), "")
	human = mem.Human()
	if human.Present {
		t.Error("present after empty frame")
	}
	if human.Identity != "" {
		t.Errorf("identity = %q after absence, want empty", human.Identity)
	}
	if human.Pose != core.PoseSitting {
		t.Errorf("pose = %v within grace, want sitting", human.Pose)
	}

	// Past the grace window the pose degrades, and the unknown stretch is
	// backdated to the last real observation.
	afterGrace := baseTime.Add(3 * time.Second)
	mem.Update(emptyFrame(afterGrace), "")
	human = mem.Human()
	if human.Pose != core.PoseUnknown {
		t.Errorf("pose = %v after grace, want unknown", human.Pose)
	}
	if human.PoseStart.After(human.LastSeen) {
		t.Errorf("PoseStart %v after LastSeen %v", human.PoseStart, human.LastSeen)
	}
}

func TestIdentityKeptWhenMatcherGoesQuiet(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(humanFrame(baseTime, sittingKeypoints()), "Alice")

	// Matcher returned nothing this frame but the person is still there;
	// the last resolved identity holds.
	mem.Update(humanFrame(baseTime.Add(time.Second), sittingKeypoints()), "")
	if got := mem.Human().Identity; got != "Alice" {
		t.Errorf("identity = %q, want Alice", got)
	}
}

func TestExpireRemovesStaleObjects(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("bottle", 10), detection("cup", 300)},
		Timestamp:  baseTime,
	}, "")
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("laptop", 500)},
		Timestamp:  baseTime.Add(9 * time.Minute),
	}, "")

	removed := mem.Expire(baseTime.Add(11*time.Minute), 10*time.Minute)
	if len(removed) != 2 || removed[0] != "bottle" || removed[1] != "cup" {
		t.Fatalf("removed = %v, want [bottle cup]", removed)
	}
	if mem.ObjectCount() != 1 {
		t.Errorf("ObjectCount = %d after expire, want 1", mem.ObjectCount())
	}
	if _, _, ok := mem.QueryObject("laptop"); !ok {
		t.Error("laptop expired, want kept")
	}
}

func TestOneShotTriggers(t *testing.T) {
	mem := newTestMemory(t)

	if _, ok := mem.ConsumeRegister(); ok {
		t.Error("register trigger armed on fresh memory")
	}
	mem.RequestRegister("Alice")
	if name, ok := mem.ConsumeRegister(); !ok || name != "Alice" {
		t.Errorf("ConsumeRegister = %q, %v; want Alice, true", name, ok)
	}
	if _, ok := mem.ConsumeRegister(); ok {
		t.Error("register trigger survived consumption")
	}

	mem.RequestSelfie()
	if !mem.ConsumeSelfie() {
		t.Error("selfie trigger not set")
	}
	if mem.ConsumeSelfie() {
		t.Error("selfie trigger survived consumption")
	}
}

func TestExportHydrateRoundTrip(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("bottle", 10)},
		Timestamp:  baseTime,
	}, "")
	mem.SetFocusMode(true)

	state := mem.Export()

	restored := newTestMemory(t)
	restored.Hydrate(state)
	if !restored.FocusMode() {
		t.Error("focus mode lost in round trip")
	}
	rec, _, ok := restored.QueryObject("bottle")
	if !ok {
		t.Fatal("bottle lost in round trip")
	}
	if !rec.LastSeen.Equal(baseTime) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, baseTime)
	}
}

func TestHydrateSkipsUnlabeledRecords(t *testing.T) {
	mem := newTestMemory(t)
	mem.Hydrate(State{Objects: []ObjectRecord{
		{Label: ""},
		{Label: "bottle", LastSeen: baseTime},
	}})
	if mem.ObjectCount() != 1 {
		t.Errorf("ObjectCount = %d, want 1", mem.ObjectCount())
	}
}

func TestVisibleLabelsSortedAndFresh(t *testing.T) {
	mem := newTestMemory(t)
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("cup", 10)},
		Timestamp:  baseTime,
	}, "")
	mem.Update(core.Frame{
		Detections: []core.Detection{detection("laptop", 300), detection("bottle", 600)},
		Timestamp:  baseTime.Add(10 * time.Second),
	}, "")

	labels := mem.VisibleLabels(baseTime.Add(11*time.Second), 2*time.Second)
	if len(labels) != 2 || labels[0] != "bottle" || labels[1] != "laptop" {
		t.Errorf("VisibleLabels = %v, want [bottle laptop]", labels)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero sit ratio", Config{SitRatio: 0, StandRatio: 1.1, PoseGrace: time.Second}, true},
		{"inverted band", Config{SitRatio: 1.2, StandRatio: 1.0, PoseGrace: time.Second}, true},
		{"negative grace", Config{SitRatio: 0.9, StandRatio: 1.1, PoseGrace: -time.Second}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
