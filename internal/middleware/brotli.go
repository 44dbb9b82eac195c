package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

const (
	brotliQuality   = 5
	brotliThreshold = 1024
)

// brWriter holds a response back until it is big enough to be worth
// compressing. Below the threshold the body goes out unchanged when the
// handler returns.
type brWriter struct {
	gin.ResponseWriter
	quality   int
	threshold int

	pending []byte
	enc     *brotli.Writer
}

func (w *brWriter) Write(p []byte) (int, error) {
	if w.enc != nil {
		return w.enc.Write(p)
	}
	w.pending = append(w.pending, p...)
	if len(w.pending) < w.threshold {
		return len(p), nil
	}
	if err := w.startEncoding(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *brWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// startEncoding switches the response to br and pushes the held bytes into
// the encoder. Headers must still be unsent.
func (w *brWriter) startEncoding() error {
	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")

	w.enc = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
	_, err := w.enc.Write(w.pending)
	w.pending = nil
	return err
}

func (w *brWriter) Flush() {
	if w.enc != nil {
		_ = w.enc.Flush()
	} else {
		_ = w.release()
	}
	w.ResponseWriter.Flush()
}

// release sends held bytes uncompressed.
func (w *brWriter) release() error {
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	w.pending = nil
	return err
}

func (w *brWriter) finish() error {
	if w.enc != nil {
		return w.enc.Close()
	}
	return w.release()
}

// Brotli compresses JSON responses of at least 1 KiB for clients that send
// "Accept-Encoding: br". Streams and upgrades pass through.
func Brotli() gin.HandlerFunc {
	return BrotliLevel(brotliQuality, brotliThreshold)
}

// BrotliLevel is Brotli with an explicit quality (0-11) and minimum body size.
func BrotliLevel(quality, threshold int) gin.HandlerFunc {
	if quality < brotli.BestSpeed || quality > brotli.BestCompression {
		quality = brotliQuality
	}
	if threshold <= 0 {
		threshold = brotliThreshold
	}

	return func(c *gin.Context) {
		if streaming(c.Request) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &brWriter{ResponseWriter: c.Writer, quality: quality, threshold: threshold}
		c.Writer = w
		defer func() {
			c.Writer = w.ResponseWriter
			if err := w.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

func streaming(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
