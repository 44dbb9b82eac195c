package proctor

import (
	"math"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// PoseThresholds configures head-pose discretisation.
type PoseThresholds struct {
	// Yaw is the normalised nose offset beyond which the head is turned.
	Yaw float64
	// Pitch is the jaw angle in degrees under which the head is tilted up.
	Pitch float64
}

// EstimateHeadPose discretises the head orientation from landmarks.
//
// Yaw is the horizontal offset of the nose from the eye center divided by
// the inter-eye distance. Pitch uses the jaw angle: the slope from the jaw
// corners down to the chin flattens as the head tilts back.
func EstimateHeadPose(l model.Landmarks, th PoseThresholds) model.HeadPose {
	eyeDist := distance(l.LeftEye, l.RightEye)
	if eyeDist == 0 {
		return model.HeadFront
	}

	eyeCenter := midpoint(l.LeftEye, l.RightEye)
	yaw := (l.Nose.X - eyeCenter.X) / eyeDist
	switch {
	case yaw < -th.Yaw:
		return model.HeadLeft
	case yaw > th.Yaw:
		return model.HeadRight
	}

	if JawAngle(l) < th.Pitch {
		return model.HeadUp
	}
	return model.HeadFront
}

// JawAngle returns the angle in degrees between the jaw-corner line and the
// line from its midpoint to the chin.
func JawAngle(l model.Landmarks) float64 {
	half := distance(l.JawLeft, l.JawRight) / 2
	if half == 0 {
		return 90
	}
	drop := l.Chin.Y - midpoint(l.JawLeft, l.JawRight).Y
	return math.Atan2(drop, half) * 180 / math.Pi
}

// EmbeddingDistance is the Euclidean distance between two descriptors.
// Descriptors of different length never match.
func EmbeddingDistance(a, b model.Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func distance(a, b model.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func midpoint(a, b model.Point) model.Point {
	return model.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
