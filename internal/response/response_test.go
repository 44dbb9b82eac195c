package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequestIDReuseAndReplace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { Fail(c, http.StatusConflict, ErrAlreadySubmitted) })

	tests := []struct {
		name   string
		header string
		reused bool
	}{
		{"sane id reused", "abc-123", true},
		{"too long replaced", strings.Repeat("x", 65), false},
		{"control chars replaced", "bad\tid", false},
		{"missing generated", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			got := w.Header().Get("X-Request-ID")
			if got != body.Metadata.RequestID || got == "" {
				t.Fatalf("header %q and metadata %q disagree", got, body.Metadata.RequestID)
			}
			if (got == tt.header) != tt.reused {
				t.Fatalf("reuse=%v expected, got id %q", tt.reused, got)
			}
			if body.Error == nil || body.Error.Code != ErrAlreadySubmitted || body.Metadata.ServerTimeMs == 0 {
				t.Fatalf("unexpected envelope: %+v", body)
			}
		})
	}
}
