package detector

import (
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/moodlens/internal/emotion"
)

// FERPlusClasses is the output order of the FER+ ONNX model. The model's
// "contempt" class has no counterpart in the vocabulary and is dropped.
var FERPlusClasses = []emotion.Label{
	emotion.Neutral,
	emotion.Happy,
	emotion.Surprise,
	emotion.Sad,
	emotion.Angry,
	emotion.Disgust,
	emotion.Fear,
	"", // contempt
}

// ClassifierConfig describes the input and output layout of an emotion network.
type ClassifierConfig struct {
	// InputSize is the square grayscale input edge in pixels.
	InputSize int
	// Scale multiplies pixel values before inference.
	Scale float64
	// Classes maps output indices to labels; "" drops the index.
	Classes []emotion.Label
	// Softmax applies softmax to raw network scores.
	Softmax bool
}

// FERPlusConfig returns the layout of the FER+ (emotion-ferplus-8) model.
func FERPlusConfig() ClassifierConfig {
	return ClassifierConfig{
		InputSize: 64,
		Scale:     1.0,
		Classes:   FERPlusClasses,
		Softmax:   true,
	}
}

// NetClassifier classifies face regions with an OpenCV DNN network.
type NetClassifier struct {
	path   string
	config ClassifierConfig
	net    gocv.Net
	mu     sync.Mutex
}

// NewNetClassifier loads the network at path.
func NewNetClassifier(path string, cfg ClassifierConfig) (*NetClassifier, error) {
	if err := checkModel(path); err != nil {
		return nil, err
	}
	if cfg.InputSize <= 0 || len(cfg.Classes) == 0 {
		return nil, fmt.Errorf("invalid classifier config: input=%d classes=%d", cfg.InputSize, len(cfg.Classes))
	}

	net, err := readNet(path)
	if err != nil {
		return nil, err
	}

	return &NetClassifier{
		path:   path,
		config: cfg,
		net:    net,
	}, nil
}

func readNet(path string) (gocv.Net, error) {
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		net.Close()
		return gocv.Net{}, fmt.Errorf("read network from %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return net, nil
}

// Classify converts face to a square grayscale blob, runs the network and
// turns the scores into a distribution over the vocabulary.
func (c *NetClassifier) Classify(face gocv.Mat) (Result, bool, error) {
	if face.Empty() {
		return Result{}, false, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if face.Channels() > 1 {
		gocv.CvtColor(face, &gray, gocv.ColorBGRToGray)
	} else {
		face.CopyTo(&gray)
	}

	size := image.Pt(c.config.InputSize, c.config.InputSize)
	blob := gocv.BlobFromImage(gray, c.config.Scale, size, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.mu.Lock()
	c.net.SetInput(blob, "")
	out := c.net.Forward("")
	c.mu.Unlock()
	defer out.Close()

	if out.Empty() {
		return Result{}, false, fmt.Errorf("empty network output")
	}

	n := int(out.Total())
	if n < len(c.config.Classes) {
		return Result{}, false, fmt.Errorf("network returned %d scores, want %d", n, len(c.config.Classes))
	}
	flat := out.Reshape(1, 1)
	defer flat.Close()

	scores := make([]float64, len(c.config.Classes))
	for i := range scores {
		scores[i] = float64(flat.GetFloatAt(0, i))
	}

	dist := DistributionFromScores(scores, c.config.Classes, c.config.Softmax)
	label, confidence := dist.Top()
	if label == "" {
		return Result{}, false, nil
	}

	return Result{
		Label:        label,
		Confidence:   confidence,
		Distribution: dist,
	}, true, nil
}

// Reload re-reads the network file, keeping the old network if loading fails.
func (c *NetClassifier) Reload() error {
	next, err := readNet(c.path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.net
	c.net = next
	c.mu.Unlock()

	return old.Close()
}

// Close releases the network.
func (c *NetClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

// DistributionFromScores maps raw network scores onto the vocabulary. Indices
// labelled "" are dropped and the remainder is renormalised to sum to 1.
func DistributionFromScores(scores []float64, classes []emotion.Label, softmax bool) emotion.Distribution {
	d := emotion.NewDistribution()
	if len(scores) == 0 {
		return d
	}

	probs := scores
	if softmax {
		maxScore := math.Inf(-1)
		for _, s := range scores {
			maxScore = math.Max(maxScore, s)
		}
		probs = make([]float64, len(scores))
		for i, s := range scores {
			probs[i] = math.Exp(s - maxScore)
		}
	}

	for i, p := range probs {
		if i >= len(classes) || classes[i] == "" {
			continue
		}
		d[classes[i]] += p
	}
	return d.Normalize()
}
