package detector

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/emotion"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []image.Rectangle
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]image.Rectangle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// MockClassifier is a test implementation of the Classifier interface.
// Queued results are returned in order; after the queue drains the default
// result (if any) is returned for every call.
type MockClassifier struct {
	mu      sync.Mutex
	queue   []Result
	def     *Result
	err     error
	calls   int
	regions []image.Point
	reloads int
	closes  int
}

// NewMockClassifier creates a new MockClassifier that returns no result.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

// SetResult sets the result returned once the queue is empty.
func (m *MockClassifier) SetResult(r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.def = &r
}

// ClearResult makes the classifier return no result once the queue is empty.
func (m *MockClassifier) ClearResult() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.def = nil
}

// Enqueue appends results to be returned by successive calls.
func (m *MockClassifier) Enqueue(results ...Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, results...)
}

// SetError sets the error that will be returned by Classify.
func (m *MockClassifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Classify was invoked.
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// RegionSizes returns the width and height of every region classified.
func (m *MockClassifier) RegionSizes() []image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Point(nil), m.regions...)
}

// Classify returns the next queued result, the default result, or nothing.
func (m *MockClassifier) Classify(face gocv.Mat) (Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.regions = append(m.regions, image.Pt(face.Cols(), face.Rows()))

	if m.err != nil {
		return Result{}, false, m.err
	}
	if len(m.queue) > 0 {
		r := m.queue[0]
		m.queue = m.queue[1:]
		return r, true, nil
	}
	if m.def != nil {
		return *m.def, true, nil
	}
	return Result{}, false, nil
}

// Reload counts reloads.
func (m *MockClassifier) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	return nil
}

// Reloads returns how many times Reload was invoked.
func (m *MockClassifier) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

// Close counts closes.
func (m *MockClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Closes returns how many times Close was invoked.
func (m *MockClassifier) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// ResultFor builds a Result whose distribution puts confidence on label and
// spreads the remainder evenly over the other labels.
func ResultFor(label emotion.Label, confidence float64) Result {
	d := emotion.NewDistribution()
	rest := (1 - confidence) / float64(len(emotion.Labels)-1)
	for _, l := range emotion.Labels {
		if l == label {
			d[l] = confidence
		} else {
			d[l] = rest
		}
	}
	return Result{Label: label, Confidence: confidence, Distribution: d}
}
