// Package detector provides the face detection and emotion classification
// adapters used by the frame pipeline.
package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/emotion"
)

// ErrModelNotFound is returned when a model file does not exist.
var ErrModelNotFound = errors.New("model file not found")

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns face bounding boxes in pixel
	// coordinates. Returns an empty slice if no faces are detected.
	Detect(frame *gocv.Mat) ([]image.Rectangle, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Result is the outcome of classifying a single face region.
type Result struct {
	Label        emotion.Label
	Confidence   float64
	Distribution emotion.Distribution
}

// Classifier defines the interface for emotion classification implementations.
type Classifier interface {
	// Classify returns the emotion of a cropped face region. ok is false when
	// the classifier produced no result for the region.
	Classify(face gocv.Mat) (res Result, ok bool, err error)

	// Close releases any resources held by the classifier.
	Close() error
}

// Reloader is implemented by adapters that can re-read their model file.
type Reloader interface {
	Reload() error
}

// Config holds configuration options for face detection.
type Config struct {
	// ScaleFactor is the cascade image pyramid step (default: 1.1).
	ScaleFactor float64

	// MinNeighbors is the number of overlapping cascade hits required (default: 5).
	MinNeighbors int

	// MinFaceSize is the smallest face, in pixels, that is reported (default: 48).
	MinFaceSize int

	// ScoreThreshold is the minimum YuNet detection score (0.0-1.0).
	ScoreThreshold float64

	// NMSThreshold is the YuNet non-maximum suppression threshold (0.0-1.0).
	NMSThreshold float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ScaleFactor:    1.1,
		MinNeighbors:   5,
		MinFaceSize:    48,
		ScoreThreshold: 0.8,
		NMSThreshold:   0.3,
	}
}

// NewFaceDetector picks a detector implementation from the model file type:
// ".xml" loads a Haar cascade, ".onnx" loads YuNet.
func NewFaceDetector(modelPath string, cfg Config) (Detector, error) {
	if err := checkModel(modelPath); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".xml":
		return NewCascadeDetector(modelPath, cfg)
	case ".onnx":
		return NewYuNetDetector(modelPath, cfg)
	default:
		return nil, fmt.Errorf("unsupported face model %q", modelPath)
	}
}

// ClipToFrame intersects r with the frame bounds.
func ClipToFrame(r image.Rectangle, frame *gocv.Mat) image.Rectangle {
	return r.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
}

func checkModel(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrModelNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return fmt.Errorf("stat model %s: %w", path, err)
	}
	return nil
}
