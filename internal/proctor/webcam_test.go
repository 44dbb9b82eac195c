package proctor

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

var testPose = PoseThresholds{Yaw: 0.25, Pitch: 18}

func landmarks(noseX, chinY float64) model.Landmarks {
	return model.Landmarks{
		LeftEye:  model.Point{X: 40, Y: 50},
		RightEye: model.Point{X: 60, Y: 50},
		Nose:     model.Point{X: noseX, Y: 60},
		Chin:     model.Point{X: 50, Y: chinY},
		JawLeft:  model.Point{X: 30, Y: 70},
		JawRight: model.Point{X: 70, Y: 70},
	}
}

func TestEstimateHeadPose(t *testing.T) {
	cases := []struct {
		name string
		l    model.Landmarks
		want model.HeadPose
	}{
		{"front", landmarks(50, 90), model.HeadFront},
		{"left", landmarks(40, 90), model.HeadLeft},
		{"right", landmarks(61, 90), model.HeadRight},
		{"up", landmarks(50, 75), model.HeadUp},
		{"degenerate eyes", model.Landmarks{}, model.HeadFront},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateHeadPose(tc.l, testPose); got != tc.want {
				t.Fatalf("EstimateHeadPose = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestEmbeddingDistance(t *testing.T) {
	if d := EmbeddingDistance(model.Embedding{0, 3}, model.Embedding{4, 0}); d != 5 {
		t.Fatalf("expected 5, got %v", d)
	}
	if d := EmbeddingDistance(model.Embedding{1}, model.Embedding{1, 2}); !math.IsInf(d, 1) {
		t.Fatalf("expected +Inf for length mismatch, got %v", d)
	}
}

func newTestMonitor(refs map[model.HeadPose]model.Embedding, det FaceDetector) *WebcamMonitor {
	return NewWebcamMonitor(det, refs, WebcamConfig{
		Interval:       10 * time.Millisecond,
		MatchThreshold: 0.5,
		Pose:           testPose,
	}, zerolog.Nop())
}

func TestClassify(t *testing.T) {
	me := model.Embedding{0.1, 0.2, 0.3}
	stranger := model.Embedding{0.9, 0.9, 0.9}
	refs := map[model.HeadPose]model.Embedding{model.HeadFront: me}
	m := newTestMonitor(refs, nil)

	cases := []struct {
		name  string
		faces []model.Face
		want  model.WebcamViolationType
	}{
		{"no face", nil, model.WebcamMissingFace},
		{"two faces", []model.Face{{}, {}}, model.WebcamMultipleFaces},
		{"match", []model.Face{{Landmarks: landmarks(50, 90), Embedding: me}}, model.WebcamViolationNone},
		{"mismatch", []model.Face{{Landmarks: landmarks(50, 90), Embedding: stranger}}, model.WebcamFaceMismatch},
		{"turned", []model.Face{{Landmarks: landmarks(40, 90), Embedding: me}}, model.WebcamHeadPositionWarning},
		{"turned stranger", []model.Face{{Landmarks: landmarks(40, 90), Embedding: stranger}}, model.WebcamFaceMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.Classify(tc.faces).Type; got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClassifyUsesPoseReference(t *testing.T) {
	front := model.Embedding{0, 0}
	up := model.Embedding{1, 1}
	m := newTestMonitor(map[model.HeadPose]model.Embedding{model.HeadFront: front, model.HeadUp: up}, nil)

	obs := m.Classify([]model.Face{{Landmarks: landmarks(50, 75), Embedding: up}})
	if obs.HeadPose != model.HeadUp || obs.Type != model.WebcamViolationNone {
		t.Fatalf("expected match against up reference, got %+v", obs)
	}
}

func TestClassifyWithoutReferences(t *testing.T) {
	m := newTestMonitor(nil, nil)
	obs := m.Classify([]model.Face{{Landmarks: landmarks(50, 90)}})
	if obs.Type != model.WebcamViolationNone || obs.Distance >= 0 {
		t.Fatalf("expected no identity check, got %+v", obs)
	}
}

type stubDetector struct {
	faces []model.Face
	err   error
}

func (d *stubDetector) DetectFaces(context.Context, []byte) ([]model.Face, error) {
	return d.faces, d.err
}

type stubCamera struct {
	mu       sync.Mutex
	startErr error
	started  bool
	stopped  int
	frame    []byte
	at       time.Time
}

func (c *stubCamera) Start(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return c.startErr
}

func (c *stubCamera) Frame() ([]byte, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return nil, time.Time{}, false
	}
	return c.frame, c.at, true
}

func (c *stubCamera) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
}

func TestWebcamRunEmitsAndReleasesCamera(t *testing.T) {
	m := newTestMonitor(nil, &stubDetector{})
	cam := &stubCamera{frame: []byte("jpeg"), at: time.Now().Add(time.Hour)}

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan Observation, 16)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, cam, func(o Observation) {
			select {
			case got <- o:
			default:
			}
		})
	}()

	select {
	case o := <-got:
		if o.Type != model.WebcamMissingFace {
			t.Fatalf("expected missing face, got %q", o.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no observation emitted")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if cam.stopped != 1 {
		t.Fatalf("expected camera released once, got %d", cam.stopped)
	}
}

func TestWebcamRunStaleFeed(t *testing.T) {
	m := newTestMonitor(nil, &stubDetector{faces: []model.Face{{Landmarks: landmarks(50, 90)}}})
	cam := &stubCamera{frame: []byte("jpeg"), at: time.Now().Add(-time.Minute)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan Observation, 1)
	go m.Run(ctx, cam, func(o Observation) {
		select {
		case got <- o:
		default:
		}
	})

	select {
	case o := <-got:
		if o.Type != model.WebcamMissingFace {
			t.Fatalf("expected stale feed to read as missing face, got %q", o.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no observation emitted")
	}
}

func TestWebcamRunCameraFailure(t *testing.T) {
	m := newTestMonitor(nil, &stubDetector{})
	cam := &stubCamera{startErr: errors.New("permission denied")}
	err := m.Run(context.Background(), cam, func(Observation) {})
	if err == nil {
		t.Fatalf("expected camera error")
	}
	if cam.stopped != 1 {
		t.Fatalf("expected camera released after failed start, got %d", cam.stopped)
	}
}
