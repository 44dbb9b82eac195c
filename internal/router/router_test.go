package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func TestRouterGuards(t *testing.T) {
	cfg := &config.Config{GinMode: "test", JWTSecret: "router-secret", JWTExpiry: time.Hour}
	auth := service.NewAuthService(cfg)
	done := make(chan struct{})
	defer close(done)

	// Handlers are never reached: every request below is stopped by a guard.
	r := SetupRouter(auth, &Handlers{}, cfg, zerolog.Nop(), done)
	studentTok, _ := auth.GenerateToken(service.TokenTypeStudent, 3)

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"health", "/health", "", http.StatusOK},
		{"paper needs token", "/api/v1/student/exams/x/paper", "", http.StatusUnauthorized},
		{"monitor needs admin", "/api/v1/admin/exams/x/monitor", studentTok, http.StatusForbidden},
		{"ws needs query token", "/ws/v1/student/exams/x/stream", studentTok, http.StatusUnauthorized},
		{"unknown route", "/api/v1/student/lobby", studentTok, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}
