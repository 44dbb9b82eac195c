// Package facedetect is the client side of the external face detection
// service: frame normalisation, detection calls and reference loading.
package facedetect

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for frames that are not jpeg, png or webp.
var ErrUnsupportedImage = errors.New("unsupported image format")

// DefaultMaxWidth bounds the width of frames sent for detection.
const DefaultMaxWidth = 640

// Decode sniffs the content type and decodes a jpeg, png or webp image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrUnsupportedImage)
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)

	r := bytes.NewReader(data)
	switch {
	case strings.Contains(ct, "jpeg"):
		return jpeg.Decode(r)
	case strings.Contains(ct, "png"):
		return png.Decode(r)
	case strings.Contains(ct, "webp"):
		return webp.Decode(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ct)
}

// Normalize decodes a frame, downsizes it to at most maxWidth keeping the
// aspect ratio, and re-encodes it as JPEG.
func Normalize(data []byte, maxWidth int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
