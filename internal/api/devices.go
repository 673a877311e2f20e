package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fernhill-labs/hearth-core/internal/device"
)

// deviceRequest is the body for creating or updating a device.
type deviceRequest struct {
	Name    string `json:"name"`
	Room    string `json:"room"`
	Type    string `json:"type"`
	Host    string `json:"host"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// handleListDevices returns the device inventory.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "could not list devices")
		return
	}
	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleCreateDevice adds a device to the inventory.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	deviceType, err := device.ParseType(req.Type)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	d := &device.Device{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Room:    req.Room,
		Type:    deviceType,
		Host:    req.Host,
		Enabled: enabled,
	}

	if err := s.devices.Create(r.Context(), d); err != nil {
		switch {
		case errors.Is(err, device.ErrRoomTypeTaken):
			writeConflict(w, "room already has a device of this type")
		case errors.Is(err, device.ErrInvalidDevice):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("creating device failed", "error", err)
			writeInternalError(w, "could not create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// handleGetDevice returns one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("fetching device failed", "device_id", id, "error", err)
		writeInternalError(w, "could not fetch device")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice modifies a device.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("fetching device failed", "device_id", id, "error", err)
		writeInternalError(w, "could not fetch device")
		return
	}

	var req deviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	if req.Name != "" {
		d.Name = req.Name
	}
	if req.Room != "" {
		d.Room = req.Room
	}
	if req.Type != "" {
		deviceType, err := device.ParseType(req.Type)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
			return
		}
		d.Type = deviceType
	}
	if req.Host != "" {
		d.Host = req.Host
	}
	if req.Enabled != nil {
		d.Enabled = *req.Enabled
	}

	if err := s.devices.Update(r.Context(), d); err != nil {
		switch {
		case errors.Is(err, device.ErrRoomTypeTaken):
			writeConflict(w, "room already has a device of this type")
		case errors.Is(err, device.ErrInvalidDevice):
			writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("updating device failed", "device_id", id, "error", err)
			writeInternalError(w, "could not update device")
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device from the inventory.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.devices.Delete(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("deleting device failed", "device_id", id, "error", err)
		writeInternalError(w, "could not delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
