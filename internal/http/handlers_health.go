package http

import (
	"context"
	"net/http"
	"time"

	"spendy/internal/cache"
	"spendy/internal/middleware/ratelimit"
	"spendy/internal/middleware/security"
	"spendy/internal/middleware/trace"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "database unavailable").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

type metricsBody struct {
	Requests  trace.Metrics             `json:"requests"`
	RateLimit ratelimit.Metrics         `json:"rate_limit"`
	Security  security.DetectionMetrics `json:"security"`
	Caches    map[string]cache.Stats    `json:"caches,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	body := metricsBody{
		Requests:  s.tracer.GetMetrics(),
		RateLimit: s.limiter.GetMetrics(),
		Security:  s.detector.GetMetrics(),
	}
	if s.caches != nil {
		body.Caches = s.caches.Snapshot()
	}
	NewJSONResponse().Body(body).Write(w)
}
