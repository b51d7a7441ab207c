// Package server provides the HTTP server for moodlens.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/app"
	"github.com/ayusman/moodlens/internal/emotion"
	"github.com/ayusman/moodlens/internal/feedback"
	"github.com/ayusman/moodlens/internal/metrics"
	"github.com/ayusman/moodlens/internal/server/api"
	"github.com/ayusman/moodlens/internal/state"
	"github.com/ayusman/moodlens/internal/store"
)

// IndexTemplate is the page rendered at "/".
const IndexTemplate = "index.html"

// FeedSource provides the live frame feed. The feed may change when the
// pipeline restarts, so it is looked up per request.
type FeedSource interface {
	Feed() *app.Feed
}

// Config holds the server configuration. Nil collaborators disable the
// routes that need them.
type Config struct {
	State          *state.State
	Feed           FeedSource
	Recorder       *feedback.Recorder
	Store          *store.Store
	TemplateDir    string
	StaticDir      string
	MetricsEnabled bool
	Logger         logrus.FieldLogger
}

// Server represents the HTTP server for the moodlens application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger logrus.FieldLogger
	index  *template.Template
	ws     *EmotionsSocket
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: config.Logger.WithField("component", "http"),
	}
	s.loadIndex()
	s.setupRoutes()
	return s
}

// loadIndex parses the index template if one is configured.
func (s *Server) loadIndex() {
	if s.config.TemplateDir == "" {
		return
	}
	path := filepath.Join(s.config.TemplateDir, IndexTemplate)
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WithField("path", path).Warn("Index template not found, / will return 404")
		} else {
			s.logger.WithError(err).Error("Failed to parse index template")
		}
		return
	}
	s.index = tmpl
}

// handle registers h under pattern with request counting.
func (s *Server) handle(pattern, name string, h http.Handler) {
	s.mux.Handle(pattern, metrics.InstrumentHandler(name, h))
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.handle("/api/health", "health", http.HandlerFunc(s.handleHealth))
	s.handle("/", "index", http.HandlerFunc(s.handleIndex))

	if s.config.State != nil {
		s.handle("/emotions_graph", "emotions_graph", api.NewEmotionsHandler(s.config.State))
		s.handle("/last_frames", "last_frames", api.NewFramesHandler(s.config.State))

		s.ws = NewEmotionsSocket(s.config.State, s.config.Logger)
		s.handle("/ws/emotions", "ws_emotions", s.ws)
	}

	if s.config.Feed != nil {
		s.handle("/video_feed", "video_feed", NewStreamHandler(s.config.Feed, s.config.Logger))
	}

	if s.config.Recorder != nil {
		s.handle("/submit_feedback", "submit_feedback", api.NewFeedbackHandler(s.config.Recorder, s.logger))
		s.handle("/report_misclassification", "report_misclassification", api.NewReportHandler(s.config.Recorder, s.logger))
	}

	if s.config.Store != nil {
		s.handle("/api/feedback", "list_feedback", api.NewFeedbackListHandler(s.config.Store))
		s.handle("/api/misclassifications", "list_misclassifications", api.NewReportListHandler(s.config.Store))
	}

	if s.config.MetricsEnabled {
		s.mux.Handle("/metrics", metrics.Handler())
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/static/", http.StripPrefix("/static/", fs))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

type indexData struct {
	Labels []emotion.Label
}

// handleIndex renders the index template at exactly "/".
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || s.index == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, indexData{Labels: emotion.Labels}); err != nil {
		s.logger.WithError(err).Error("Failed to render index")
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Live streams end when the pipeline closes the feed.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if errors.Is(err, context.DeadlineExceeded) {
		// Streaming handlers do not return on Shutdown; cut them off.
		return srv.Close()
	}
	return err
}

// Close stops background broadcasters.
func (s *Server) Close() {
	if s.ws != nil {
		s.ws.Close()
	}
}
