package server

import (
	"net/http"
)

// HandleStats returns ecosystem stats, the registry snapshot and, when a collector
// is attached, session metrics.
// GET /api/v1/stats
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Ecosystem: s.orch.GetEcosystemStats(),
		Snapshot:  s.orch.Registry().SystemSnapshot(),
	}
	if s.collector != nil {
		session := s.collector.GetSessionStats()
		resp.Session = &session
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleEvents upgrades to a websocket that streams bus events.
// GET /api/v1/events
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if s.observer == nil {
		writeError(w, ErrEventsDisabled)
		return
	}
	s.observer.ServeHTTP(w, r)
}

// RegisterMetricsRoutes registers the stats and event stream routes on the given mux.
func RegisterMetricsRoutes(mux *http.ServeMux, s *Server) {
	mux.HandleFunc("GET /api/v1/stats", s.HandleStats)
	mux.HandleFunc("GET /api/v1/events", s.HandleEvents)
}
