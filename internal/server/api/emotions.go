package api

import (
	"encoding/base64"
	"net/http"

	"github.com/ayusman/moodlens/internal/state"
)

// EmotionsHandler serves the current emotion distribution.
type EmotionsHandler struct {
	state *state.State
}

// NewEmotionsHandler creates a new EmotionsHandler reading from s.
func NewEmotionsHandler(s *state.State) *EmotionsHandler {
	return &EmotionsHandler{state: s}
}

// ServeHTTP handles GET /emotions_graph.
func (h *EmotionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.state.Emotions())
}

type frameResponse struct {
	Frame string `json:"frame"`
	Label string `json:"label"`
}

// FramesHandler serves the most recent history frames.
type FramesHandler struct {
	state *state.State
}

// NewFramesHandler creates a new FramesHandler reading from s.
func NewFramesHandler(s *state.State) *FramesHandler {
	return &FramesHandler{state: s}
}

// ServeHTTP handles GET /last_frames. Frames are oldest first, at most
// state.HistoryWindow of them, with base64 encoded JPEG payloads.
func (h *FramesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	records := h.state.RecentFrames(state.HistoryWindow)
	response := make([]frameResponse, 0, len(records))
	for _, rec := range records {
		response = append(response, frameResponse{
			Frame: base64.StdEncoding.EncodeToString(rec.Image),
			Label: string(rec.Label),
		})
	}
	writeJSON(w, http.StatusOK, response)
}
