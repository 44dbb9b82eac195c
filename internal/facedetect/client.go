package facedetect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// HTTPDetector calls the detection service. The service accepts a JPEG body
// on POST /detect and answers {"faces": [...]}, one entry per face with box,
// landmarks and descriptor.
type HTTPDetector struct {
	baseURL  string
	client   *http.Client
	maxWidth int
	log      zerolog.Logger
}

// NewHTTPDetector creates a detector for the service at baseURL.
func NewHTTPDetector(baseURL string, timeout time.Duration, log zerolog.Logger) *HTTPDetector {
	return &HTTPDetector{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		maxWidth: DefaultMaxWidth,
		log:      log.With().Str("component", "face_detector").Logger(),
	}
}

type detectResponse struct {
	Faces []model.Face `json:"faces"`
}

// DetectFaces normalises frame and asks the service for its faces.
func (d *HTTPDetector) DetectFaces(ctx context.Context, frame []byte) ([]model.Face, error) {
	body, err := Normalize(frame, d.maxWidth)
	if err != nil {
		return nil, fmt.Errorf("normalize frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call detector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detector returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}

	d.log.Debug().
		Int("faces", len(out.Faces)).
		Dur("took", time.Since(start)).
		Msg("Frame analysed")
	return out.Faces, nil
}
