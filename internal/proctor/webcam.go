package proctor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// FaceDetector finds faces in an encoded image frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, frame []byte) ([]model.Face, error)
}

// Camera is the live camera feed of one student. Start acquires it and Stop
// releases it; Stop must be safe to call more than once.
type Camera interface {
	Start(ctx context.Context) error
	// Frame returns the latest frame and when it was captured.
	Frame() ([]byte, time.Time, bool)
	Stop()
}

// Observation is the outcome of one detection tick.
type Observation struct {
	Type      model.WebcamViolationType
	FaceCount int
	HeadPose  model.HeadPose
	// Distance to the reference embedding, negative when not compared.
	Distance float64
	At       time.Time
}

// WebcamConfig configures a WebcamMonitor.
type WebcamConfig struct {
	Interval       time.Duration
	MatchThreshold float64
	Pose           PoseThresholds
}

// WebcamMonitor classifies camera frames at a fixed interval.
type WebcamMonitor struct {
	detector FaceDetector
	refs     map[model.HeadPose]model.Embedding
	cfg      WebcamConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewWebcamMonitor creates a monitor. refs may be empty, in which case
// identity is not checked.
func NewWebcamMonitor(detector FaceDetector, refs map[model.HeadPose]model.Embedding, cfg WebcamConfig, log zerolog.Logger) *WebcamMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &WebcamMonitor{
		detector: detector,
		refs:     refs,
		cfg:      cfg,
		log:      log.With().Str("component", "webcam_monitor").Logger(),
		now:      time.Now,
	}
}

// Ready reports whether detection can run at all.
func (m *WebcamMonitor) Ready() bool {
	return m != nil && m.detector != nil
}

// Run acquires the camera and emits one Observation per interval until ctx
// ends. The camera is released on every return path.
func (m *WebcamMonitor) Run(ctx context.Context, cam Camera, emit func(Observation)) error {
	if err := cam.Start(ctx); err != nil {
		cam.Stop()
		return fmt.Errorf("start camera: %w", err)
	}
	defer cam.Stop()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Frames older than this mean the feed stalled.
	stale := 3 * m.cfg.Interval

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, at, ok := cam.Frame()
		if !ok {
			continue
		}
		now := m.now()
		if now.Sub(at) > stale {
			emit(Observation{Type: model.WebcamMissingFace, Distance: -1, At: now})
			continue
		}

		obs, err := m.Analyze(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Keep the previous condition; a failed tick is detector noise.
			m.log.Warn().Err(err).Msg("Face detection failed")
			continue
		}
		emit(obs)
	}
}

// Analyze runs detection on one frame and classifies it.
func (m *WebcamMonitor) Analyze(ctx context.Context, frame []byte) (Observation, error) {
	faces, err := m.detector.DetectFaces(ctx, frame)
	if err != nil {
		return Observation{}, fmt.Errorf("detect faces: %w", err)
	}
	return m.Classify(faces), nil
}

// Classify maps detected faces onto a webcam condition.
func (m *WebcamMonitor) Classify(faces []model.Face) Observation {
	obs := Observation{FaceCount: len(faces), Distance: -1, At: m.now()}

	switch len(faces) {
	case 0:
		obs.Type = model.WebcamMissingFace
		return obs
	case 1:
	default:
		obs.Type = model.WebcamMultipleFaces
		return obs
	}

	face := faces[0]
	obs.HeadPose = EstimateHeadPose(face.Landmarks, m.cfg.Pose)
	if obs.HeadPose == model.HeadLeft || obs.HeadPose == model.HeadRight {
		obs.Type = model.WebcamHeadPositionWarning
	}

	if ref, ok := m.reference(obs.HeadPose); ok {
		obs.Distance = EmbeddingDistance(face.Embedding, ref)
		if obs.Distance >= m.cfg.MatchThreshold {
			obs.Type = model.WebcamFaceMismatch
		}
	}
	return obs
}

// reference returns the embedding for pose, falling back to the front one.
func (m *WebcamMonitor) reference(pose model.HeadPose) (model.Embedding, bool) {
	if ref, ok := m.refs[pose]; ok && len(ref) > 0 {
		return ref, true
	}
	ref, ok := m.refs[model.HeadFront]
	return ref, ok && len(ref) > 0
}
