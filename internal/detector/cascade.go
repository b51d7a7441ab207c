package detector

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// CascadeDetector finds faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	path       string
	config     Config
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascadeDetector loads the cascade at path.
func NewCascadeDetector(path string, cfg Config) (*CascadeDetector, error) {
	if err := checkModel(path); err != nil {
		return nil, err
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade classifier from %s", path)
	}

	return &CascadeDetector{
		path:       path,
		config:     cfg,
		classifier: classifier,
	}, nil
}

// Detect converts the frame to equalized grayscale and runs the cascade.
func (d *CascadeDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.EqualizeHist(gray, &gray)

	minSize := image.Pt(d.config.MinFaceSize, d.config.MinFaceSize)

	d.mu.Lock()
	defer d.mu.Unlock()

	faces := d.classifier.DetectMultiScaleWithParams(
		gray,
		d.config.ScaleFactor,
		d.config.MinNeighbors,
		0,
		minSize,
		image.Point{},
	)
	return faces, nil
}

// Reload re-reads the cascade file, keeping the old one if loading fails.
func (d *CascadeDetector) Reload() error {
	next := gocv.NewCascadeClassifier()
	if !next.Load(d.path) {
		next.Close()
		return fmt.Errorf("reload cascade classifier from %s", d.path)
	}

	d.mu.Lock()
	old := d.classifier
	d.classifier = next
	d.mu.Unlock()

	return old.Close()
}

// Close releases the cascade.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
