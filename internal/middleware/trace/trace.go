package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	applog "spendy/internal/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// HeaderRequestID is read from incoming requests and echoed on responses.
const HeaderRequestID = "X-Request-ID"

// Middleware assigns request ids, logs completed requests and keeps counters
// for the metrics endpoint.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.StructuredLogger

	total        atomic.Int64
	clientErrors atomic.Int64
	serverErrors atomic.Int64
	totalMicros  atomic.Int64
}

// Metrics is a point-in-time copy of the request counters.
type Metrics struct {
	TotalRequests       int64 `json:"total_requests"`
	ClientErrors        int64 `json:"client_errors"`
	ServerErrors        int64 `json:"server_errors"`
	AverageResponseTime int64 `json:"average_response_time_us"`
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    applog.NewStructuredLogger(logger),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > 64 {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)
		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		elapsed := time.Since(start)
		m.total.Add(1)
		m.totalMicros.Add(elapsed.Microseconds())
		switch {
		case rw.statusCode >= 500:
			m.serverErrors.Add(1)
		case rw.statusCode >= 400:
			m.clientErrors.Add(1)
		}

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		m.logger.LogHTTPEnd(ctx, r, rw.statusCode, elapsed.Milliseconds(), clientIP)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns the id stored by the middleware, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestIDFrom is GetRequestID for an *http.Request, usable with
// log.RequestIDMiddleware.
func RequestIDFrom(r *http.Request) string {
	return GetRequestID(r.Context())
}

func (m *Middleware) GetMetrics() Metrics {
	total := m.total.Load()
	var avg int64
	if total > 0 {
		avg = m.totalMicros.Load() / total
	}
	return Metrics{
		TotalRequests:       total,
		ClientErrors:        m.clientErrors.Load(),
		ServerErrors:        m.serverErrors.Load(),
		AverageResponseTime: avg,
	}
}
