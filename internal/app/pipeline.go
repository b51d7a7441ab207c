package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/capture"
	"github.com/ayusman/moodlens/internal/detector"
	"github.com/ayusman/moodlens/internal/emotion"
	"github.com/ayusman/moodlens/internal/metrics"
	"github.com/ayusman/moodlens/internal/state"
)

// Annotation style.
var (
	boxColor  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	textColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

const (
	annotationThickness = 2
	annotationScale     = 1.0
	labelOffset         = 10
	unrecognizedText    = "Unrecognized"
)

// runPipeline is the main loop. It reads frames until the source is exhausted
// or ctx is cancelled, then closes the feed and done.
//
// Per frame:
//  1. Mirror horizontally
//  2. Detect faces (when enabled)
//  3. Classify each face, replace the shared distribution, annotate
//  4. Record a history frame at most once per HistoryInterval
//  5. Publish the encoded frame to the feed
func (a *App) runPipeline(ctx context.Context, feed *Feed, done chan struct{}) {
	defer close(done)
	defer feed.Close()

	metrics.PipelineRunning.Set(1)
	defer metrics.PipelineRunning.Set(0)

	lastHistory := a.config.Now()
	var label emotion.Label

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Pipeline cancelled")
			return
		default:
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			if errors.Is(err, capture.ErrExhausted) {
				a.logger.Info("Capture source exhausted, ending stream")
			} else {
				a.logger.WithError(err).Warn("Error reading frame, ending stream")
			}
			// Release the source so a later Start reopens it from the beginning.
			if err := a.camera.Close(); err != nil {
				a.logger.WithError(err).Warn("Error closing camera")
			}
			return
		}

		start := time.Now()
		label = a.processFrame(frame, label)

		buf, err := encodeJPEG(frame)
		frame.Close()
		if err != nil {
			a.logger.WithError(err).Warn("Error encoding frame")
			metrics.PipelineErrors.WithLabelValues("encode").Inc()
			continue
		}

		now := a.config.Now()
		if now.Sub(lastHistory) >= a.config.HistoryInterval {
			n := a.state.AppendFrame(state.FrameRecord{
				Image:      buf,
				Label:      label,
				CapturedAt: now,
			})
			metrics.HistoryFrames.Set(float64(n))
			lastHistory = now
		}

		feed.Publish(buf)
		metrics.IterationDuration.Observe(time.Since(start).Seconds())
	}
}

// processFrame mirrors and annotates frame in place and returns the label of
// the last face processed. When no face is processed, label is returned
// unchanged.
func (a *App) processFrame(frame *gocv.Mat, label emotion.Label) emotion.Label {
	metrics.FramesProcessed.Inc()
	gocv.Flip(*frame, frame, 1)

	if !a.IsEnabled() || a.detector == nil {
		return label
	}

	faces, err := a.detector.Detect(frame)
	if err != nil {
		a.logger.WithError(err).Warn("Face detection failed")
		metrics.PipelineErrors.WithLabelValues("detect").Inc()
		return label
	}

	for _, face := range faces {
		r := detector.ClipToFrame(face, frame)
		if r.Empty() {
			continue
		}
		metrics.FacesDetected.Inc()

		text := unrecognizedText
		result, ok := a.classify(frame, r)
		if ok {
			a.state.SetEmotions(result.Distribution)
			text = fmt.Sprintf("%s: %.2f", result.Label, result.Confidence)
			label = result.Label
			metrics.Classifications.WithLabelValues(string(result.Label)).Inc()
		} else {
			label = ""
			metrics.Classifications.WithLabelValues("none").Inc()
		}

		gocv.Rectangle(frame, r, boxColor, annotationThickness)
		gocv.PutText(frame, text, image.Pt(r.Min.X, r.Min.Y-labelOffset),
			gocv.FontHersheySimplex, annotationScale, textColor, annotationThickness)
	}

	return label
}

// classify crops r out of frame and runs the classifier on it. Errors are
// logged and reported as no result.
func (a *App) classify(frame *gocv.Mat, r image.Rectangle) (detector.Result, bool) {
	if a.classifier == nil {
		return detector.Result{}, false
	}

	region := frame.Region(r)
	defer region.Close()

	result, ok, err := a.classifier.Classify(region)
	if err != nil {
		a.logger.WithError(err).WithField("region", r.String()).Warn("Emotion classification failed")
		metrics.PipelineErrors.WithLabelValues("classify").Inc()
		return detector.Result{}, false
	}
	if !ok || !result.Label.Valid() {
		return detector.Result{}, false
	}
	return result, true
}

// encodeJPEG encodes frame and copies the bytes out of the native buffer.
func encodeJPEG(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
