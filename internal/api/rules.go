package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fernhill-labs/hearth-core/internal/rule"
)

// ruleRequest is the body for creating or updating a rule.
type ruleRequest struct {
	Text    string `json:"text"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// handleListRules returns all persisted rules.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context())
	if err != nil {
		s.logger.Error("listing rules failed", "error", err)
		writeInternalError(w, "could not list rules")
		return
	}
	if rules == nil {
		rules = []rule.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleCreateRule persists a new rule and registers it with the engine.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	newRule := &rule.Rule{
		ID:      uuid.NewString(),
		Text:    req.Text,
		Enabled: enabled,
	}

	if err := s.rules.Upsert(r.Context(), newRule); err != nil {
		if isRuleTextError(err) {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Error("persisting rule failed", "error", err)
		writeInternalError(w, "could not save rule")
		return
	}

	if enabled {
		if _, err := s.manager.Register(newRule.ID, newRule.Text); err != nil {
			s.logger.Error("registering rule failed", "rule_id", newRule.ID, "error", err)
			writeInternalError(w, "rule saved but not activated")
			return
		}
	}

	writeJSON(w, http.StatusCreated, newRule)
}

// handleGetRule returns one rule.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := s.rules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rule.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		s.logger.Error("fetching rule failed", "rule_id", id, "error", err)
		writeInternalError(w, "could not fetch rule")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleUpdateRule replaces a rule's text or enabled flag, rewiring the
// engine to match.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.rules.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, rule.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		s.logger.Error("fetching rule failed", "rule_id", id, "error", err)
		writeInternalError(w, "could not fetch rule")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if req.Text != "" {
		existing.Text = req.Text
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	if err := s.rules.Upsert(r.Context(), existing); err != nil {
		if isRuleTextError(err) {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
			return
		}
		s.logger.Error("persisting rule failed", "rule_id", id, "error", err)
		writeInternalError(w, "could not save rule")
		return
	}

	// Rewire: drop the old registration, add the new one if still enabled.
	if err := s.manager.Remove(id); err != nil && !errors.Is(err, rule.ErrRuleNotFound) {
		s.logger.Error("deregistering rule failed", "rule_id", id, "error", err)
	}
	if existing.Enabled {
		if _, err := s.manager.Register(id, existing.Text); err != nil {
			s.logger.Error("registering rule failed", "rule_id", id, "error", err)
			writeInternalError(w, "rule saved but not activated")
			return
		}
	}

	writeJSON(w, http.StatusOK, existing)
}

// handleDeleteRule removes a rule from storage and the engine.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.rules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, rule.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		s.logger.Error("deleting rule failed", "rule_id", id, "error", err)
		writeInternalError(w, "could not delete rule")
		return
	}

	if err := s.manager.Remove(id); err != nil && !errors.Is(err, rule.ErrRuleNotFound) {
		s.logger.Error("deregistering rule failed", "rule_id", id, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// triggerRequest is the body for POST /rules/{id}/trigger.
type triggerRequest struct {
	Force bool `json:"force"`
}

// handleTriggerRule executes a rule's action immediately. With force,
// the dedup check is bypassed to push state back onto a drifted device.
func (s *Server) handleTriggerRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req triggerRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid request body")
			return
		}
	}

	result, err := s.manager.Trigger(r.Context(), id, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, rule.ErrRuleNotFound):
			writeNotFound(w, "rule not registered")
		case errors.Is(err, rule.ErrLookup):
			writeConflict(w, err.Error())
		default:
			s.logger.Error("rule trigger failed", "rule_id", id, "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeInternal, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": result.DeviceID,
		"no_change": result.NoChange,
	})
}

func isRuleTextError(err error) bool {
	return errors.Is(err, rule.ErrParse) ||
		errors.Is(err, rule.ErrUnknownMetric) ||
		errors.Is(err, rule.ErrUnknownDeviceType)
}
