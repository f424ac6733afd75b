package server

import "net/http"

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "sync is disabled"})
		return
	}
	s.sync.Trigger()
	writeJSON(w, http.StatusAccepted, s.sync.Status())
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		writeJSON(w, http.StatusOK, map[string]string{"state": "disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.sync.Status())
}
