package http

import (
	"net/http"

	"spendy/internal/core"
)

type activityResponse struct {
	Activities []core.ActivityEntry `json:"activities"`
	Total      int                  `json:"total"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}
	f, err := ParseActivityFilter(r.URL.Query(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, total, err := s.svc.Activity.Query(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.ActivityEntry{}
	}
	NewJSONResponse().Body(activityResponse{
		Activities: entries,
		Total:      total,
		Limit:      f.Limit,
		Offset:     f.Offset,
	}).Write(w)
}
