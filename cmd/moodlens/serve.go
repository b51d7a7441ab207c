package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/moodlens/internal/app"
	"github.com/ayusman/moodlens/internal/capture"
	"github.com/ayusman/moodlens/internal/config"
	"github.com/ayusman/moodlens/internal/detector"
	"github.com/ayusman/moodlens/internal/events"
	"github.com/ayusman/moodlens/internal/feedback"
	"github.com/ayusman/moodlens/internal/metrics"
	"github.com/ayusman/moodlens/internal/server"
	"github.com/ayusman/moodlens/internal/state"
	"github.com/ayusman/moodlens/internal/store"
	"github.com/ayusman/moodlens/internal/tray"
)

// moodRefresh is how often the tray mood item is updated.
const moodRefresh = time.Second

// serveOptions are the flags of the serve command. They override the
// environment only when set explicitly.
type serveOptions struct {
	Addr         string
	Camera       string
	FaceModel    string
	EmotionModel string
	DataDir      string
	Tray         bool
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live pipeline and the web viewer",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.Addr, "addr", "", "HTTP listen address (default :5000)")
	f.StringVar(&serveOpts.Camera, "camera", "", "Camera device index or video file")
	f.StringVar(&serveOpts.FaceModel, "face-model", "", "Face detector model (.xml cascade or .onnx YuNet)")
	f.StringVar(&serveOpts.EmotionModel, "emotion-model", "", "Emotion classifier model (.onnx)")
	f.StringVar(&serveOpts.DataDir, "data-dir", "", "Directory for the feedback log, archive and database")
	f.BoolVar(&serveOpts.Tray, "tray", false, "Show a system tray icon")

	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the environment and applies the flags of opts that were
// set explicitly on cmd.
func loadConfig(cmd *cobra.Command, opts *serveOptions) (config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = opts.Addr
	}
	if flags.Changed("camera") {
		cfg.Camera = opts.Camera
	}
	if flags.Changed("face-model") {
		cfg.FaceModel = opts.FaceModel
	}
	if flags.Changed("emotion-model") {
		cfg.EmotionModel = opts.EmotionModel
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = opts.DataDir
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadModels builds the face detector and the emotion classifier.
func loadModels(faceModel, emotionModel string) (detector.Detector, *detector.NetClassifier, error) {
	det, err := detector.NewFaceDetector(faceModel, detector.DefaultConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("load face model: %w", err)
	}
	cls, err := detector.NewNetClassifier(emotionModel, detector.FERPlusConfig())
	if err != nil {
		det.Close()
		return nil, nil, fmt.Errorf("load emotion model: %w", err)
	}
	return det, cls, nil
}

func newPublisher(cfg config.Config, logger logrus.FieldLogger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(events.AMQPConfig{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("AMQP unavailable, events will not be published")
		return events.Nop{}
	}
	return pub
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &serveOpts)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger()
	if cfg.MetricsEnabled {
		metrics.Init(logger)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	det, cls, err := loadModels(cfg.FaceModel, cfg.EmotionModel)
	if err != nil {
		return err
	}

	pipeline := app.New(app.Config{
		State:           state.New(),
		Camera:          capture.NewCamera(cfg.Camera),
		Detector:        det,
		Classifier:      cls,
		Logger:          logger,
		HistoryInterval: cfg.HistoryInterval,
	})
	pipeline.SetEnabled(st.Settings().GetBool(store.SettingClassificationEnabled, true))
	defer pipeline.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.WatchModels {
		targets := map[string]detector.Reloader{cfg.EmotionModel: cls}
		if r, ok := det.(detector.Reloader); ok {
			targets[cfg.FaceModel] = r
		}
		watcher, err := detector.NewModelWatcher(targets, logger)
		if err != nil {
			logger.WithError(err).Warn("Model hot reload disabled")
		} else {
			go watcher.Run(ctx)
		}
	}

	recorder := feedback.NewRecorder(feedback.RecorderConfig{
		DataDir:   cfg.DataDir,
		Store:     st,
		Publisher: publisher,
		Logger:    logger,
	})

	srv := server.New(server.Config{
		State:          pipeline.State(),
		Feed:           pipeline,
		Recorder:       recorder,
		Store:          st,
		TemplateDir:    cfg.TemplateDir,
		StaticDir:      cfg.StaticDir,
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         logger,
	})

	if err := pipeline.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	if !serveOpts.Tray {
		return serveHTTP(ctx, srv, cfg.Addr, pipeline)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- serveHTTP(ctx, srv, cfg.Addr, pipeline)
	}()

	t := tray.New()
	t.SetEnabled(pipeline.IsEnabled())
	t.OnToggle(func(enabled bool) {
		pipeline.SetEnabled(enabled)
		if err := st.Settings().SetBool(store.SettingClassificationEnabled, enabled); err != nil {
			logger.WithError(err).Warn("Failed to persist classification setting")
		}
		logger.WithField("enabled", enabled).Info("Classification toggled")
	})
	t.OnOpen(func() {
		if err := tray.OpenBrowser(viewerURL(cfg.Addr)); err != nil {
			logger.WithError(err).Warn("Failed to open browser")
		}
	})
	t.OnQuit(cancel)
	go t.Watch(ctx, pipeline.State(), moodRefresh)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	// The tray owns the main goroutine until it quits.
	t.Run()
	cancel()
	return <-errCh
}

// serveHTTP runs the server until ctx is done. The pipeline is stopped as
// soon as ctx is cancelled so open video streams end and shutdown can finish.
func serveHTTP(ctx context.Context, srv *server.Server, addr string, pipeline *app.App) error {
	go func() {
		<-ctx.Done()
		pipeline.Stop()
	}()

	err := srv.ListenAndServe(ctx, addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// viewerURL turns a listen address into a browsable URL.
func viewerURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
