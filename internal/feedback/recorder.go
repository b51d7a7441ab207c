package feedback

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/events"
	"github.com/ayusman/moodlens/internal/metrics"
	"github.com/ayusman/moodlens/internal/store"
)

// Recorder writes submissions to their file artifacts, then indexes and
// publishes them. Only the file write can fail a submission; index and
// publish failures are logged.
type Recorder struct {
	log       *Log
	archive   *Archive
	store     *store.Store
	publisher events.Publisher
	logger    logrus.FieldLogger
}

// RecorderConfig holds the collaborators of a Recorder. Store and Publisher
// are optional.
type RecorderConfig struct {
	DataDir   string
	Store     *store.Store
	Publisher events.Publisher
	Logger    logrus.FieldLogger
}

// NewRecorder creates a Recorder writing under cfg.DataDir.
func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.Publisher == nil {
		cfg.Publisher = events.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Recorder{
		log:       NewLog(filepath.Join(cfg.DataDir, LogFileName)),
		archive:   NewArchive(filepath.Join(cfg.DataDir, ArchiveDirName)),
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    cfg.Logger.WithField("component", "feedback"),
	}
}

// Log returns the feedback log.
func (r *Recorder) Log() *Log { return r.log }

// Archive returns the misclassification archive.
func (r *Recorder) Archive() *Archive { return r.archive }

// SubmitFeedback appends text to the feedback log. It returns
// ErrEmptyFeedback for empty text.
func (r *Recorder) SubmitFeedback(ctx context.Context, text string) error {
	if err := r.log.Append(text); err != nil {
		if errors.Is(err, ErrEmptyFeedback) {
			metrics.FeedbackSubmissions.WithLabelValues("empty").Inc()
		} else {
			metrics.FeedbackSubmissions.WithLabelValues("failed").Inc()
		}
		return err
	}
	metrics.FeedbackSubmissions.WithLabelValues("accepted").Inc()

	entry := &store.Feedback{Message: text, CreatedAt: time.Now()}
	if r.store != nil {
		if err := r.store.Feedback().Create(entry); err != nil {
			r.logger.WithError(err).Warn("Failed to index feedback")
		}
	}

	err := r.publisher.Publish(ctx, events.RoutingFeedback, events.FeedbackEvent{
		ID:        entry.ID,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		r.logger.WithError(err).Warn("Failed to publish feedback event")
	}

	r.logger.WithField("length", len(text)).Debug("Feedback recorded")
	return nil
}

// ReportMisclassification archives the frame for label. Reports with missing
// or unusable fields return ErrInvalidReport and write nothing.
func (r *Recorder) ReportMisclassification(ctx context.Context, label, frame string) (*store.Report, error) {
	path, size, err := r.archive.Save(label, frame)
	if err != nil {
		if errors.Is(err, ErrInvalidReport) {
			metrics.MisclassificationReports.WithLabelValues("skipped").Inc()
		} else {
			metrics.MisclassificationReports.WithLabelValues("failed").Inc()
		}
		return nil, err
	}
	metrics.MisclassificationReports.WithLabelValues("saved").Inc()

	rep := &store.Report{Emotion: label, Path: path, Size: size, CreatedAt: time.Now()}
	if r.store != nil {
		if err := r.store.Reports().Create(rep); err != nil {
			r.logger.WithError(err).Warn("Failed to index misclassification report")
		}
	}

	err = r.publisher.Publish(ctx, events.RoutingMisclassification, events.MisclassificationEvent{
		ID:        rep.ID,
		Emotion:   rep.Emotion,
		Path:      rep.Path,
		Size:      rep.Size,
		CreatedAt: rep.CreatedAt,
	})
	if err != nil {
		r.logger.WithError(err).Warn("Failed to publish misclassification event")
	}

	r.logger.WithFields(logrus.Fields{
		"emotion": label,
		"path":    path,
	}).Info("Saved misclassified image")
	return rep, nil
}
