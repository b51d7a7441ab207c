package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/app"
	"github.com/ayusman/moodlens/internal/capture"
	"github.com/ayusman/moodlens/internal/emotion"
	"github.com/ayusman/moodlens/internal/state"
)

// defaultReplayFPS is used when the container does not report a frame rate.
const defaultReplayFPS = 30.0

var (
	replayOpts  serveOptions
	replayInput string
	replayFPS   float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run the pipeline over a video file and print the results",
	Long: `Replay feeds a recorded video through the same pipeline as serve.
History spacing follows the video's own timeline, so the results do not
depend on how fast the machine decodes the file.`,
	RunE: runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVarP(&replayInput, "input", "i", "", "Path to the input video file (required)")
	f.StringVar(&replayOpts.FaceModel, "face-model", "", "Face detector model (.xml cascade or .onnx YuNet)")
	f.StringVar(&replayOpts.EmotionModel, "emotion-model", "", "Emotion classifier model (.onnx)")
	f.Float64Var(&replayFPS, "fps", 0, "Frame rate override when the file does not report one")
	replayCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, &replayOpts)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	// Keep the progress bar readable.
	logger.SetOutput(os.Stderr)

	det, cls, err := loadModels(cfg.FaceModel, cfg.EmotionModel)
	if err != nil {
		return err
	}

	camera := capture.NewCamera(replayInput)
	if err := camera.Open(); err != nil {
		det.Close()
		cls.Close()
		return err
	}

	total := -1
	if fc, ok := camera.(capture.FrameCounter); ok {
		total = fc.FrameCount()
	}
	fps := replayFPS
	if fps <= 0 {
		if fr, ok := camera.(capture.FrameRater); ok {
			fps = fr.FPS()
		}
	}
	if fps <= 0 {
		fps = defaultReplayFPS
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Replaying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	pipeline := app.New(app.Config{
		State:           state.New(),
		Camera:          &progressCamera{Camera: camera, bar: bar},
		Detector:        det,
		Classifier:      cls,
		Logger:          logger,
		HistoryInterval: cfg.HistoryInterval,
		Now:             newVideoClock(time.Now(), fps).Now,
	})
	defer pipeline.Close()

	if err := pipeline.Start(cmd.Context()); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	select {
	case <-pipeline.Done():
	case <-cmd.Context().Done():
		pipeline.Stop()
		return cmd.Context().Err()
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	printSummary(os.Stdout, pipeline.State())
	return nil
}

// printSummary writes the final distribution in vocabulary order followed by
// the labels of the retained history.
func printSummary(w io.Writer, s *state.State) {
	dist := s.Emotions()
	fmt.Fprintln(w, "Emotions:")
	for _, l := range emotion.Labels {
		fmt.Fprintf(w, "  %-9s %.4f\n", l, dist[l])
	}

	records := s.RecentFrames(state.HistoryWindow)
	labels := make([]string, len(records))
	for i, rec := range records {
		labels[i] = string(rec.Label)
		if labels[i] == "" {
			labels[i] = "-"
		}
	}
	fmt.Fprintf(w, "History: %s\n", strings.Join(labels, " "))
}

// progressCamera advances a progress bar on every frame read.
type progressCamera struct {
	capture.Camera
	bar *progressbar.ProgressBar
}

func (c *progressCamera) ReadFrame() (*gocv.Mat, error) {
	frame, err := c.Camera.ReadFrame()
	if err == nil {
		c.bar.Add(1)
	}
	return frame, err
}

// videoClock reports the presentation time of the current frame. The first
// read is the start of the video; every further read advances one frame.
type videoClock struct {
	mu    sync.Mutex
	start time.Time
	frame time.Duration
	reads int64
}

func newVideoClock(start time.Time, fps float64) *videoClock {
	return &videoClock{start: start, frame: time.Duration(float64(time.Second) / fps)}
}

func (c *videoClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.start.Add(time.Duration(c.reads) * c.frame)
	c.reads++
	return now
}
