package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/seerlink/seerlink-core/internal/bridge"
	"github.com/seerlink/seerlink-core/internal/hub"
)

// deviceResponse is the JSON shape of one bridged device.
type deviceResponse struct {
	UniqueID   string          `json:"unique_id"`
	Ref        int             `json:"ref"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Available  bool            `json:"available"`
	Attributes map[string]any  `json:"attributes"`
	Parent     *parentResponse `json:"parent,omitempty"`
}

type parentResponse struct {
	Ref  int    `json:"ref"`
	Name string `json:"name"`
}

// remoteResponse is the JSON shape of one remote dispatcher.
type remoteResponse struct {
	UniqueID string `json:"unique_id"`
	Ref      int    `json:"ref"`
	Name     string `json:"name"`
}

// controlRequest is the body for POST /devices/{ref}/control.
// Either a typed action or a raw value must be present.
type controlRequest struct {
	Action string `json:"action"`
	Value  *int   `json:"value"`
}

func deviceToResponse(e *bridge.Entity) deviceResponse {
	resp := deviceResponse{
		UniqueID:   e.UniqueID(),
		Ref:        e.Ref(),
		Name:       e.DisplayName(),
		Category:   string(e.Category()),
		Available:  e.Available(),
		Attributes: e.Attributes(),
	}
	if parent := e.ParentInfo(); parent != nil {
		resp.Parent = &parentResponse{Ref: parent.Ref, Name: parent.Name}
	}
	return resp
}

// handleListDevices returns the bridged devices, optionally filtered by
// ?category=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var entities []*bridge.Entity

	if category := r.URL.Query().Get("category"); category != "" {
		if !validCategory(category) {
			writeBadRequest(w, "unknown category: "+category)
			return
		}
		entities = s.bridge.EntitiesByCategory(bridge.Category(category))
	} else {
		entities = s.bridge.Entities()
	}

	devices := make([]deviceResponse, 0, len(entities))
	for _, entity := range entities {
		devices = append(devices, deviceToResponse(entity))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one bridged device by ref.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := strconv.Atoi(chi.URLParam(r, "ref"))
	if err != nil {
		writeBadRequest(w, "ref must be an integer")
		return
	}

	entity, ok := s.bridge.Entity(ref)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, deviceToResponse(entity))
}

// handleControlDevice dispatches a control request to the hub.
//
// A body with an action uses the device's category commands; a body with
// only a value uses the raw control-by-value path.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	ref, err := strconv.Atoi(chi.URLParam(r, "ref"))
	if err != nil {
		writeBadRequest(w, "ref must be an integer")
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	switch {
	case req.Action != "":
		value := 0
		if req.Value != nil {
			value = *req.Value
		}
		err = s.bridge.Control(r.Context(), ref, req.Action, value)
	case req.Value != nil:
		err = s.bridge.ControlByValue(r.Context(), ref, *req.Value)
	default:
		writeBadRequest(w, "action or value is required")
		return
	}

	if err != nil {
		writeControlError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "ref": ref})
}

// handleListRemotes returns the remote keypress dispatchers.
func (s *Server) handleListRemotes(w http.ResponseWriter, _ *http.Request) {
	dispatchers := s.bridge.Remotes()

	remotes := make([]remoteResponse, 0, len(dispatchers))
	for _, d := range dispatchers {
		remotes = append(remotes, remoteResponse{
			UniqueID: d.UniqueID(),
			Ref:      d.Ref(),
			Name:     d.Name(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"remotes": remotes,
		"count":   len(remotes),
	})
}

// writeControlError maps bridge and hub errors to HTTP responses.
func writeControlError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bridge.ErrUnknownDevice):
		writeNotFound(w, err.Error())
	case errors.Is(err, bridge.ErrUnsupportedAction),
		errors.Is(err, hub.ErrUnsupportedAction),
		errors.Is(err, hub.ErrInvalidValue):
		writeBadRequest(w, err.Error())
	default:
		writeUpstreamError(w, err.Error())
	}
}

// validCategory reports whether the string names a device category.
func validCategory(category string) bool {
	for _, c := range bridge.Categories {
		if string(c) == category {
			return true
		}
	}
	return false
}
