// Package capture provides frame sources backed by GoCV (OpenCV): webcams,
// video files and stream URLs.
package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings for camera devices.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrExhausted is returned when the source stops producing frames.
	ErrExhausted = errors.New("capture source exhausted")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller owns the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// FrameCounter is implemented by sources that know their length, such as files.
type FrameCounter interface {
	FrameCount() int
}

// FrameRater is implemented by sources that report a nominal frame rate.
type FrameRater interface {
	FPS() float64
}

// cameraImpl manages video capture from a device, file or URL using GoCV.
type cameraImpl struct {
	source  string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewCamera creates a Camera for source. A numeric source is treated as a
// device index; anything else is passed to OpenCV as a file path or URL.
func NewCamera(source string) Camera {
	return &cameraImpl{source: source}
}

// Open opens the underlying capture.
// Devices are set to 640x480 for performance.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	deviceID, convErr := strconv.Atoi(c.source)
	if convErr == nil {
		capture, err = gocv.OpenVideoCapture(deviceID)
	} else {
		capture, err = gocv.OpenVideoCapture(c.source)
	}
	if err != nil {
		return fmt.Errorf("open capture %q: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open capture %q: source not opened", c.source)
	}

	if convErr == nil {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the capture and releases resources.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame.
// A failed or empty read means the source is exhausted.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrExhausted
	}

	return &mat, nil
}

// IsOpen returns true if the capture is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// FrameCount returns the number of frames reported by the container, or -1
// when the source is a live device or the count is unknown.
func (c *cameraImpl) FrameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return -1
	}
	if _, err := strconv.Atoi(c.source); err == nil {
		return -1
	}
	n := int(c.capture.Get(gocv.VideoCaptureFrameCount))
	if n <= 0 {
		return -1
	}
	return n
}

// FPS returns the nominal frame rate, or 0 when it is unknown.
func (c *cameraImpl) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return 0
	}
	fps := c.capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		return 0
	}
	return fps
}
