package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNetDetector loads the YuNet ONNX model at path.
func NewYuNetDetector(path string, cfg Config) (*YuNetDetector, error) {
	if err := checkModel(path); err != nil {
		return nil, err
	}

	// Initial input size is replaced per frame in Detect.
	d := gocv.NewFaceDetectorYNWithParams(
		path,
		"",
		image.Pt(320, 320),
		float32(cfg.ScoreThreshold),
		float32(cfg.NMSThreshold),
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{
		detector: d,
		config:   cfg,
	}, nil
}

// Detect returns face boxes in pixel coordinates.
func (d *YuNetDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.detector.SetInputSize(image.Pt(frame.Cols(), frame.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(*frame, &faces)

	// Each row: x, y, w, h, five landmark pairs, score.
	rects := make([]image.Rectangle, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		x := int(faces.GetFloatAt(r, 0))
		y := int(faces.GetFloatAt(r, 1))
		w := int(faces.GetFloatAt(r, 2))
		h := int(faces.GetFloatAt(r, 3))
		if w < d.config.MinFaceSize || h < d.config.MinFaceSize {
			continue
		}
		rects = append(rects, image.Rect(x, y, x+w, y+h))
	}
	return rects, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
