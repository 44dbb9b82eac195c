package facedetect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"golang.org/x/sync/errgroup"
)

// ErrNoReference is returned when no reference photo yielded an embedding.
var ErrNoReference = errors.New("no usable reference image")

const maxReferenceBytes = 8 << 20

// ReferenceLoader turns a student's registered photos into embeddings.
type ReferenceLoader struct {
	detector proctor.FaceDetector
	client   *http.Client
	log      zerolog.Logger
}

// NewReferenceLoader creates a loader that downloads photos with a client
// bounded by timeout.
func NewReferenceLoader(detector proctor.FaceDetector, timeout time.Duration, log zerolog.Logger) *ReferenceLoader {
	return &ReferenceLoader{
		detector: detector,
		client:   &http.Client{Timeout: timeout},
		log:      log.With().Str("component", "reference_loader").Logger(),
	}
}

// Load fetches every registered pose in parallel. A pose whose photo cannot
// be fetched or does not show exactly one face is skipped; Load only fails
// when no pose is usable.
func (l *ReferenceLoader) Load(ctx context.Context, images map[model.HeadPose]string) (map[model.HeadPose]model.Embedding, error) {
	var (
		mu   sync.Mutex
		refs = make(map[model.HeadPose]model.Embedding, len(images))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for pose, url := range images {
		g.Go(func() error {
			emb, err := l.embed(gctx, url)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.log.Warn().Err(err).Str("pose", string(pose)).Msg("Skipping reference image")
				return nil
			}
			mu.Lock()
			refs[pose] = emb
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(refs) == 0 {
		return nil, ErrNoReference
	}
	return refs, nil
}

func (l *ReferenceLoader) embed(ctx context.Context, url string) (model.Embedding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reference: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reference: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReferenceBytes))
	if err != nil {
		return nil, fmt.Errorf("read reference: %w", err)
	}

	faces, err := l.detector.DetectFaces(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(faces) != 1 || len(faces[0].Embedding) == 0 {
		return nil, fmt.Errorf("reference shows %d faces", len(faces))
	}
	return faces[0].Embedding, nil
}
