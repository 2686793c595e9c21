package core

import "time"

// BoundingBox is an axis-aligned box in frame pixel coordinates.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float64 {
	return b.X + b.W/2
}

// Detection is one object reported by the external detector for a frame.
type Detection struct {
	Label      string      `json:"label"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
}

// Point is a 2D keypoint location in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keypoint names produced by the external pose estimator.
// Only the ones the core reasons about are listed; the keypoint map may
// carry others untouched.
const (
	KeypointLeftShoulder  = "LEFT_SHOULDER"
	KeypointRightShoulder = "RIGHT_SHOULDER"
	KeypointLeftHip       = "LEFT_HIP"
	KeypointRightHip      = "RIGHT_HIP"
	KeypointLeftEar       = "LEFT_EAR"
	KeypointRightEar      = "RIGHT_EAR"
)

// PoseEstimate is the external pose estimator's output for one frame.
type PoseEstimate struct {
	Keypoints map[string]Point `json:"keypoints"`
	Box       BoundingBox      `json:"box"`
}

// Frame bundles everything the perception side hands the core per tick.
//
// Embedding is the face embedding for the human region, if the upstream
// extractor produced one this frame. The core never computes embeddings,
// it only matches them.
type Frame struct {
	Detections []Detection   `json:"detections"`
	Pose       *PoseEstimate `json:"pose,omitempty"`
	Embedding  []float32     `json:"embedding,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
}

// PoseState classifies the tracked human's posture.
type PoseState int

const (
	PoseUnknown PoseState = iota
	PoseSitting
	PoseStanding
)

func (p PoseState) String() string {
	switch p {
	case PoseSitting:
		return "sitting"
	case PoseStanding:
		return "standing"
	default:
		return "unknown"
	}
}

// Position is the coarse horizontal bucket of an object, derived from the
// bounding-box center against frame-width thirds.
type Position int

const (
	PositionLeft Position = iota
	PositionCenter
	PositionRight
)

func (p Position) String() string {
	switch p {
	case PositionLeft:
		return "on the left"
	case PositionRight:
		return "on the right"
	default:
		return "in the center"
	}
}

// BucketPosition classifies a bounding box into a Position bucket.
// Deterministic, recomputed on every update; no hysteresis.
func BucketPosition(box BoundingBox, frameWidth int) Position {
	cx := box.CenterX()
	third := float64(frameWidth) / 3
	switch {
	case cx < third:
		return PositionLeft
	case cx < 2*third:
		return PositionCenter
	default:
		return PositionRight
	}
}
