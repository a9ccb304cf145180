package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seerlink/seerlink-core/internal/bridge"
)

// sceneResponse is the JSON shape of one bridged scene.
type sceneResponse struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// runSceneRequest is the body for POST /scenes/run.
type runSceneRequest struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// handleListScenes returns the bridged scenes.
func (s *Server) handleListScenes(w http.ResponseWriter, _ *http.Request) {
	bridged := s.bridge.Scenes()

	scenes := make([]sceneResponse, 0, len(bridged))
	for _, scene := range bridged {
		scenes = append(scenes, sceneResponse{Group: scene.Group(), Name: scene.Name()})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"scenes": scenes,
		"count":  len(scenes),
	})
}

// handleRunScene activates a bridged scene on the hub.
func (s *Server) handleRunScene(w http.ResponseWriter, r *http.Request) {
	var req runSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Group == "" || req.Name == "" {
		writeBadRequest(w, "group and name are required")
		return
	}

	// Successful activation fans out to MQTT, WebSocket, and history
	// through the bridge's notifier.
	if err := s.bridge.RunScene(r.Context(), req.Group, req.Name); err != nil {
		if errors.Is(err, bridge.ErrUnknownScene) {
			writeNotFound(w, err.Error())
			return
		}
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "activated"})
}
