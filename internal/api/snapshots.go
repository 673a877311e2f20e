package api

import (
	"encoding/json"
	"net/http"

	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// handleSubmitSnapshot injects a sensor snapshot into the engine.
//
// Unknown top-level keys in the body are ignored, so richer payloads
// from future sensor firmware pass through unchanged.
func (s *Server) handleSubmitSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap rule.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeBadRequest(w, "invalid snapshot body")
		return
	}

	if len(snap.Temp) == 0 && len(snap.Humidity) == 0 && len(snap.Motion) == 0 {
		writeBadRequest(w, "snapshot carries no readings")
		return
	}

	s.manager.ProcessSnapshot(r.Context(), snap)
	w.WriteHeader(http.StatusAccepted)
}

// handleReconcile runs a drift-reconciliation pass on demand.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "reconciler not configured")
		return
	}

	invalidated := s.reconciler.Run(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": invalidated})
}
