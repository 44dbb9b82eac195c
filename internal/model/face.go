package model

// HeadPose is the coarse head orientation derived from landmarks.
type HeadPose string

const (
	HeadFront HeadPose = "front"
	HeadLeft  HeadPose = "left"
	HeadRight HeadPose = "right"
	HeadUp    HeadPose = "up"
)

// Poses lists every pose a reference image may be registered for.
var Poses = []HeadPose{HeadFront, HeadLeft, HeadRight, HeadUp}

// Point is a 2D image coordinate in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a face bounding region.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landmarks are the facial keypoints used for head-pose estimation.
// Eye points are eye centers; JawLeft/JawRight are the jaw corners.
type Landmarks struct {
	LeftEye  Point `json:"left_eye"`
	RightEye Point `json:"right_eye"`
	Nose     Point `json:"nose"`
	Chin     Point `json:"chin"`
	JawLeft  Point `json:"jaw_left"`
	JawRight Point `json:"jaw_right"`
}

// Embedding is a fixed-length face descriptor.
type Embedding []float64

// Face is one detection result.
type Face struct {
	Box       Box       `json:"box"`
	Landmarks Landmarks `json:"landmarks"`
	Embedding Embedding `json:"descriptor"`
}

// Registration is the outcome of the external registration/verification
// check for one student and exam.
type Registration struct {
	Allowed         bool                `json:"allowed"`
	ReferenceImages map[HeadPose]string `json:"reference_images"`
}
