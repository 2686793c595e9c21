package scene

import (
	"math"

	"github.com/jay7-tech/memo-go/core"
)

// classifyPose derives a pose state from shoulder and hip keypoints.
//
// The torso ratio is the vertical shoulder–hip separation normalized by
// shoulder width (the body-scale reference, so the ratio is distance
// invariant). A compressed torso reads as sitting, an extended one as
// standing. Ratios inside the [sitRatio, standRatio] band resolve to the
// previous state so adjacent frames cannot flap between states and
// retrigger duration rules.
func classifyPose(keypoints map[string]core.Point, prev core.PoseState, sitRatio, standRatio float64) core.PoseState {
	ls, lok := keypoints[core.KeypointLeftShoulder]
	rs, rok := keypoints[core.KeypointRightShoulder]
	lh, lhok := keypoints[core.KeypointLeftHip]
	rh, rhok := keypoints[core.KeypointRightHip]
	if !lok || !rok || !lhok || !rhok {
		return core.PoseUnknown
	}

	shoulderWidth := math.Hypot(ls.X-rs.X, ls.Y-rs.Y)
	if shoulderWidth <= 0 {
		return core.PoseUnknown
	}

	shoulderY := (ls.Y + rs.Y) / 2
	hipY := (lh.Y + rh.Y) / 2
	ratio := math.Abs(hipY-shoulderY) / shoulderWidth

	switch {
	case ratio < sitRatio:
		return core.PoseSitting
	case ratio > standRatio:
		return core.PoseStanding
	default:
		return prev
	}
}

// ShoulderSpan returns the shoulder keypoint distance and whether both
// shoulders were observed. The proximity rule compares it against frame
// width; ears serve as a scaled fallback when the shoulders are cropped
// out of frame.
func ShoulderSpan(keypoints map[string]core.Point) (float64, bool) {
	if ls, ok := keypoints[core.KeypointLeftShoulder]; ok {
		if rs, ok := keypoints[core.KeypointRightShoulder]; ok {
			return math.Hypot(ls.X-rs.X, ls.Y-rs.Y), true
		}
	}
	if le, ok := keypoints[core.KeypointLeftEar]; ok {
		if re, ok := keypoints[core.KeypointRightEar]; ok {
			return math.Hypot(le.X-re.X, le.Y-re.Y) * 2.5, true
		}
	}
	return 0, false
}
