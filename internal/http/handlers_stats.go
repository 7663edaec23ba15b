package http

import (
	"net/http"

	"spendy/internal/core"
)

type notificationsResponse struct {
	Notifications []core.Notification `json:"notifications"`
	Count         int                 `json:"count"`
}

// handleStats serves the monthly snapshot; month defaults to the current one.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}
	month, err := ParseMonthParam(r.URL.Query(), s.svc.Budget.CurrentMonth())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	stats, err := s.svc.Budget.MonthlyStats(r.Context(), uid, month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(stats).Write(w)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := s.svc.Notifications.Generate(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(notificationsResponse{Notifications: ns, Count: len(ns)}).Write(w)
}
