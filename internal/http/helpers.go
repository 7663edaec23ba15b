package http

import (
	"net/http"
	"strings"

	"spendy/internal/core"
)

// HeaderUserID carries the user id set by the upstream session provider.
const HeaderUserID = "X-User-ID"

// userID returns the caller's id from the header, or the user_id query
// parameter; "" means unauthenticated.
func userID(r *http.Request) string {
	if id := sanitizeInput(r.Header.Get(HeaderUserID)); id != "" {
		return id
	}
	return sanitizeInput(r.URL.Query().Get("user_id"))
}

// rateLimitKey buckets authenticated callers by user and the rest by address.
func (s *Server) rateLimitKey(r *http.Request) string {
	if id := userID(r); id != "" {
		return "user:" + id
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

func (s *Server) actor(r *http.Request) core.Actor {
	ua := r.UserAgent()
	if len(ua) > 255 {
		ua = ua[:255]
	}
	return core.Actor{
		UserID:    userID(r),
		IPAddress: s.detector.ExtractClientIP(r),
		UserAgent: ua,
	}
}

// planID reads the {id} path segment in either sav007 or 7 form.
func planID(r *http.Request) (int64, error) {
	return core.ParseDisplayID(core.PlanIDPrefix, r.PathValue("id"))
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
