package server

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/metrics"
)

// StreamHandler serves the pipeline's annotated frames as MJPEG.
type StreamHandler struct {
	source FeedSource
	logger logrus.FieldLogger
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source FeedSource, logger logrus.FieldLogger) *StreamHandler {
	return &StreamHandler{source: source, logger: logger.WithField("component", "stream")}
}

// ServeHTTP streams frames until the feed closes or the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frames, cancel := h.source.Feed().Subscribe()
	defer cancel()

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case buf, ok := <-frames:
			if !ok {
				h.logger.Debug("Feed closed, ending stream")
				return
			}

			// Write MJPEG frame
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
				return
			}
			if _, err := w.Write(buf); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
