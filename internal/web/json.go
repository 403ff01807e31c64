package web

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/aqualight/internal/settings"
	"github.com/sweeney/aqualight/internal/status"
)

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleSettings serves the persisted settings document as stored.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.settings == nil {
		http.NotFound(w, r)
		return
	}
	data, err := s.settings()
	switch {
	case errors.Is(err, settings.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		log.WithError(err).Error("web: read settings")
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
