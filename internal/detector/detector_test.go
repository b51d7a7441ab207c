package detector

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/emotion"
)

func TestMockDetector(t *testing.T) {
	t.Run("returns no faces by default", func(t *testing.T) {
		mock := NewMockDetector()

		faces, err := mock.Detect(nil)

		assert.NoError(t, err)
		assert.Nil(t, faces)
		assert.Equal(t, 1, mock.Calls())
	})

	t.Run("returns configured faces", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetFaces([]image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(20, 20, 40, 40)})

		faces, err := mock.Detect(nil)

		assert.NoError(t, err)
		assert.Len(t, faces, 2)
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		faces, err := mock.Detect(nil)

		assert.Equal(t, expectedErr, err)
		assert.Nil(t, faces)
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
	})
}

func TestMockClassifier(t *testing.T) {
	region := gocv.NewMatWithSize(8, 6, gocv.MatTypeCV8UC3)
	defer region.Close()

	t.Run("returns no result by default", func(t *testing.T) {
		mock := NewMockClassifier()

		_, ok, err := mock.Classify(region)

		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, []image.Point{image.Pt(6, 8)}, mock.RegionSizes())
	})

	t.Run("drains queue before default", func(t *testing.T) {
		mock := NewMockClassifier()
		mock.Enqueue(ResultFor(emotion.Sad, 0.6))
		mock.SetResult(ResultFor(emotion.Happy, 0.9))

		first, ok, _ := mock.Classify(region)
		require.True(t, ok)
		assert.Equal(t, emotion.Sad, first.Label)

		second, ok, _ := mock.Classify(region)
		require.True(t, ok)
		assert.Equal(t, emotion.Happy, second.Label)

		mock.ClearResult()
		_, ok, _ = mock.Classify(region)
		assert.False(t, ok)
	})

	t.Run("implements Classifier and Reloader", func(t *testing.T) {
		var _ Classifier = (*MockClassifier)(nil)
		var _ Reloader = (*MockClassifier)(nil)
	})
}

func TestResultFor(t *testing.T) {
	r := ResultFor(emotion.Surprise, 0.7)

	assert.Equal(t, emotion.Surprise, r.Label)
	assert.InDelta(t, 1.0, r.Distribution.Sum(), 1e-9)
	top, score := r.Distribution.Top()
	assert.Equal(t, emotion.Surprise, top)
	assert.InDelta(t, 0.7, score, 1e-9)
}

func TestDistributionFromScores(t *testing.T) {
	t.Run("softmax drops unmapped classes and sums to one", func(t *testing.T) {
		// neutral, happiness, surprise, sadness, anger, disgust, fear, contempt
		scores := []float64{0.1, 5.0, 0.3, 0.2, 0.0, -1.0, 0.4, 9.0}

		d := DistributionFromScores(scores, FERPlusClasses, true)

		assert.InDelta(t, 1.0, d.Sum(), 1e-9)
		assert.Len(t, d, len(emotion.Labels))
		top, _ := d.Top()
		assert.Equal(t, emotion.Happy, top, "contempt must not win")
	})

	t.Run("probabilities are renormalised without softmax", func(t *testing.T) {
		classes := []emotion.Label{emotion.Happy, emotion.Sad, ""}
		d := DistributionFromScores([]float64{0.3, 0.1, 0.6}, classes, false)

		assert.InDelta(t, 0.75, d[emotion.Happy], 1e-9)
		assert.InDelta(t, 0.25, d[emotion.Sad], 1e-9)
	})

	t.Run("empty scores give the zero distribution", func(t *testing.T) {
		d := DistributionFromScores(nil, FERPlusClasses, true)
		assert.Zero(t, d.Sum())
	})
}

func TestNewFaceDetector_Errors(t *testing.T) {
	_, err := NewFaceDetector(filepath.Join(t.TempDir(), "missing.xml"), DefaultConfig())
	assert.True(t, errors.Is(err, ErrModelNotFound), "got %v", err)

	other := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	_, err = NewFaceDetector(other, DefaultConfig())
	assert.ErrorContains(t, err, "unsupported face model")
}

func TestNewNetClassifier_MissingModel(t *testing.T) {
	_, err := NewNetClassifier(filepath.Join(t.TempDir(), "missing.onnx"), FERPlusConfig())
	assert.True(t, errors.Is(err, ErrModelNotFound), "got %v", err)
}

func TestClipToFrame(t *testing.T) {
	frame := gocv.NewMatWithSize(100, 200, gocv.MatTypeCV8UC3)
	defer frame.Close()

	tests := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{name: "inside", in: image.Rect(10, 10, 50, 50), want: image.Rect(10, 10, 50, 50)},
		{name: "negative origin", in: image.Rect(-20, -5, 30, 30), want: image.Rect(0, 0, 30, 30)},
		{name: "past the edge", in: image.Rect(180, 90, 260, 140), want: image.Rect(180, 90, 200, 100)},
		{name: "fully outside", in: image.Rect(300, 300, 400, 400), want: image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClipToFrame(tt.in, &frame))
		})
	}
}

func TestModelWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "emotion.onnx")
	require.NoError(t, os.WriteFile(modelPath, []byte("v1"), 0644))

	mock := NewMockClassifier()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	w, err := NewModelWatcher(map[string]Reloader{modelPath: mock}, logger)
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(modelPath, []byte("v2"), 0644))

	require.Eventually(t, func() bool { return mock.Reloads() >= 1 }, 3*time.Second, 20*time.Millisecond)
}
