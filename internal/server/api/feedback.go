package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/feedback"
	"github.com/ayusman/moodlens/internal/store"
)

// Response texts for feedback submissions.
const (
	FeedbackAccepted = "Your feedback has been submitted."
	FeedbackEmpty    = "Feedback cannot be empty."
)

const defaultListLimit = 50

// FeedbackHandler accepts feedback form submissions.
type FeedbackHandler struct {
	recorder *feedback.Recorder
	logger   logrus.FieldLogger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(rec *feedback.Recorder, logger logrus.FieldLogger) *FeedbackHandler {
	return &FeedbackHandler{recorder: rec, logger: logger}
}

// ServeHTTP handles POST /submit_feedback with form field "feedback".
func (h *FeedbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	err := h.recorder.SubmitFeedback(r.Context(), r.PostFormValue("feedback"))
	switch {
	case err == nil:
		writeText(w, FeedbackAccepted)
	case errors.Is(err, feedback.ErrEmptyFeedback):
		writeText(w, FeedbackEmpty)
	default:
		h.logger.WithError(err).Error("Failed to record feedback")
		http.Error(w, "Failed to record feedback", http.StatusInternalServerError)
	}
}

type listFeedbackResponse struct {
	Feedback []*store.Feedback `json:"feedback"`
	Total    int               `json:"total"`
}

// FeedbackListHandler lists indexed feedback entries.
type FeedbackListHandler struct {
	store *store.Store
}

// NewFeedbackListHandler creates a new FeedbackListHandler.
func NewFeedbackListHandler(s *store.Store) *FeedbackListHandler {
	return &FeedbackListHandler{store: s}
}

// ServeHTTP handles GET /api/feedback?limit=N.
func (h *FeedbackListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	entries, err := h.store.Feedback().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list feedback")
		return
	}
	total, err := h.store.Feedback().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count feedback")
		return
	}

	writeJSON(w, http.StatusOK, listFeedbackResponse{Feedback: entries, Total: total})
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
