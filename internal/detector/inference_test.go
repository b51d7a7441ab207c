package detector

import (
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/emotion"
	"github.com/ayusman/moodlens/testdata"
)

// modelFromEnv returns the model path in key, skipping the test when it is
// unset or in short mode. Example:
//
//	MOODLENS_TEST_EMOTION_MODEL=models/emotion-ferplus-8.onnx go test ./internal/detector/
func modelFromEnv(t *testing.T, key string) string {
	t.Helper()
	path := os.Getenv(key)
	if testing.Short() || path == "" {
		t.Skipf("skipping model integration test: %s not set", key)
	}
	return path
}

func TestNetClassifier_Classify_Integration(t *testing.T) {
	path := modelFromEnv(t, "MOODLENS_TEST_EMOTION_MODEL")

	c, err := NewNetClassifier(path, FERPlusConfig())
	require.NoError(t, err)
	defer c.Close()

	frame := testdata.Frame(testdata.FrameWidth, testdata.FrameHeight, 128)
	defer frame.Close()
	region := frame.Region(image.Rect(200, 120, 360, 320))
	defer region.Close()

	result, ok, err := c.Classify(region)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, result.Label.Valid())
	assert.InDelta(t, 1.0, result.Distribution.Sum(), 1e-6)
	assert.Len(t, result.Distribution, len(emotion.Labels))
	assert.Equal(t, result.Distribution[result.Label], result.Confidence)

	// The network is swapped in place and keeps producing results.
	require.NoError(t, c.Reload())
	_, ok, err = c.Classify(region)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNetClassifier_ClassifyEmptyRegion_Integration(t *testing.T) {
	path := modelFromEnv(t, "MOODLENS_TEST_EMOTION_MODEL")

	c, err := NewNetClassifier(path, FERPlusConfig())
	require.NoError(t, err)
	defer c.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	_, ok, err := c.Classify(empty)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCascadeDetector_Detect_Integration(t *testing.T) {
	path := modelFromEnv(t, "MOODLENS_TEST_CASCADE_MODEL")

	d, err := NewCascadeDetector(path, DefaultConfig())
	require.NoError(t, err)
	defer d.Close()

	frame := testdata.Frame(testdata.FrameWidth, testdata.FrameHeight, 128)
	defer frame.Close()

	faces, err := d.Detect(frame)
	require.NoError(t, err)
	assert.Empty(t, faces, "a blank frame has no faces")

	require.NoError(t, d.Reload())
	_, err = d.Detect(frame)
	assert.NoError(t, err)
}

func TestYuNetDetector_Detect_Integration(t *testing.T) {
	path := modelFromEnv(t, "MOODLENS_TEST_YUNET_MODEL")

	d, err := NewYuNetDetector(path, DefaultConfig())
	require.NoError(t, err)
	defer d.Close()

	frame := testdata.Frame(testdata.FrameWidth, testdata.FrameHeight, 128)
	defer frame.Close()

	faces, err := d.Detect(frame)
	require.NoError(t, err)
	assert.Empty(t, faces, "a blank frame has no faces")
}
