// Package app provides the frame pipeline that turns camera frames into
// annotated video, emotion distributions and history records.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/capture"
	"github.com/ayusman/moodlens/internal/detector"
	"github.com/ayusman/moodlens/internal/state"
)

// DefaultHistoryInterval is the minimum spacing between history records.
const DefaultHistoryInterval = time.Second

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("pipeline closed")

// Config holds the collaborators of the pipeline.
type Config struct {
	State      *state.State
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier detector.Classifier
	Logger     logrus.FieldLogger

	// HistoryInterval is the minimum time between two history records.
	HistoryInterval time.Duration

	// Now is the pipeline clock. It is read once at start and once per frame.
	Now func() time.Time
}

// App orchestrates capture, detection, classification and annotation.
type App struct {
	config     Config
	state      *state.State
	camera     capture.Camera
	detector   detector.Detector
	classifier detector.Classifier
	logger     logrus.FieldLogger

	enabled bool
	closed  bool
	feed    *Feed
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.RWMutex

	closeOnce sync.Once
}

// New creates an App. Missing optional fields get defaults: a fresh State,
// the standard logrus logger, a one second history interval and time.Now.
func New(config Config) *App {
	if config.State == nil {
		config.State = state.New()
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.HistoryInterval <= 0 {
		config.HistoryInterval = DefaultHistoryInterval
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	done := make(chan struct{})
	close(done)

	return &App{
		config:     config,
		state:      config.State,
		camera:     config.Camera,
		detector:   config.Detector,
		classifier: config.Classifier,
		logger:     config.Logger.WithField("component", "pipeline"),
		enabled:    true,
		feed:       NewFeed(),
		done:       done,
	}
}

// SetEnabled enables or disables face detection and classification. Frames
// are still mirrored, encoded and streamed while disabled.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether classification is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera and launches the pipeline goroutine. Calling Start
// on a running pipeline is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	if a.cancel != nil {
		select {
		case <-a.done:
			// The previous run ended on its own.
			a.cancel()
			a.cancel = nil
		default:
			return nil
		}
	}

	if err := a.camera.Open(); err != nil {
		return err
	}

	// A restarted pipeline needs a fresh feed; the previous one was closed.
	if a.feed.Closed() {
		a.feed = NewFeed()
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.runPipeline(runCtx, a.feed, a.done)

	a.logger.Info("Frame pipeline started")
	return nil
}

// Stop halts the pipeline, waits for it to exit and releases the camera.
// The pipeline can be started again afterwards.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// A concurrent Stop may have taken cancel; done is closed while idle.
	<-done

	if err := a.camera.Close(); err != nil {
		a.logger.WithError(err).Warn("Error closing camera")
	}

	a.logger.Info("Frame pipeline stopped")
}

// Close stops the pipeline and releases the models. It is safe to call more
// than once; the App cannot be restarted afterwards.
func (a *App) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	a.Stop()
	a.closeOnce.Do(a.closeModels)
}

func (a *App) closeModels() {
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.logger.WithError(err).Warn("Error closing face detector")
		}
	}
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			a.logger.WithError(err).Warn("Error closing emotion classifier")
		}
	}
}

// Done returns a channel that is closed when the pipeline goroutine exits.
// Before the first Start it returns a closed channel.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Feed returns the live frame feed of the current run.
func (a *App) Feed() *Feed {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.feed
}

// State returns the shared state the pipeline writes to.
func (a *App) State() *state.State {
	return a.state
}

// Camera returns the capture source.
func (a *App) Camera() capture.Camera {
	return a.camera
}
