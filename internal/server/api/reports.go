package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/feedback"
	"github.com/ayusman/moodlens/internal/store"
)

// ReportAcknowledgement is returned for every misclassification report.
const ReportAcknowledgement = "Thank you for your submission!"

// maxReportBytes bounds the JSON body of a report.
const maxReportBytes = 16 << 20

type reportRequest struct {
	Frame   string `json:"frame"`
	Emotion string `json:"emotion"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// ReportHandler archives frames reported as misclassified.
type ReportHandler struct {
	recorder *feedback.Recorder
	logger   logrus.FieldLogger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(rec *feedback.Recorder, logger logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{recorder: rec, logger: logger}
}

// ServeHTTP handles POST /report_misclassification. The response is always
// the acknowledgement; unusable reports are skipped and failed writes are
// only logged.
func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req reportRequest
	body := http.MaxBytesReader(w, r.Body, maxReportBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.logger.WithError(err).Debug("Skipping malformed misclassification report")
		writeJSON(w, http.StatusOK, messageResponse{Message: ReportAcknowledgement})
		return
	}

	_, err := h.recorder.ReportMisclassification(r.Context(), req.Emotion, req.Frame)
	switch {
	case err == nil:
	case errors.Is(err, feedback.ErrInvalidReport):
		h.logger.WithError(err).Debug("Skipping misclassification report")
	default:
		h.logger.WithError(err).WithField("emotion", req.Emotion).Error("Failed to archive misclassified frame")
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: ReportAcknowledgement})
}

type listReportsResponse struct {
	Reports []*store.Report `json:"reports"`
	Counts  map[string]int  `json:"counts"`
}

// ReportListHandler lists indexed misclassification reports.
type ReportListHandler struct {
	store *store.Store
}

// NewReportListHandler creates a new ReportListHandler.
func NewReportListHandler(s *store.Store) *ReportListHandler {
	return &ReportListHandler{store: s}
}

// ServeHTTP handles GET /api/misclassifications?limit=N.
func (h *ReportListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	reports, err := h.store.Reports().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}
	counts, err := h.store.Reports().CountByEmotion()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count reports")
		return
	}

	writeJSON(w, http.StatusOK, listReportsResponse{Reports: reports, Counts: counts})
}
