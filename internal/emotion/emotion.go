// Package emotion defines the fixed emotion vocabulary and the probability
// distribution shared between the classifier, the pipeline and the HTTP API.
package emotion

import (
	"math"
	"path/filepath"
	"strings"
)

// Label is one of the seven emotion classes.
type Label string

// Emotion labels, in the order they are reported.
const (
	Angry    Label = "angry"
	Disgust  Label = "disgust"
	Fear     Label = "fear"
	Happy    Label = "happy"
	Neutral  Label = "neutral"
	Sad      Label = "sad"
	Surprise Label = "surprise"
)

// Labels lists the vocabulary in a stable order.
var Labels = []Label{Angry, Disgust, Fear, Happy, Neutral, Sad, Surprise}

// Valid reports whether l is part of the vocabulary.
func (l Label) Valid() bool {
	for _, v := range Labels {
		if v == l {
			return true
		}
	}
	return false
}

// Distribution maps each label to a probability in [0,1].
type Distribution map[Label]float64

// NewDistribution returns a distribution with every label set to zero.
func NewDistribution() Distribution {
	d := make(Distribution, len(Labels))
	for _, l := range Labels {
		d[l] = 0
	}
	return d
}

// Clone returns an independent copy of d. Missing labels are filled with zero.
func (d Distribution) Clone() Distribution {
	out := NewDistribution()
	for l, v := range d {
		out[l] = v
	}
	return out
}

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	var s float64
	for _, v := range d {
		s += v
	}
	return s
}

// Top returns the label with the highest probability. Ties resolve to the
// label that comes first in Labels. An all-zero distribution returns "".
func (d Distribution) Top() (Label, float64) {
	var (
		best  Label
		score float64
	)
	for _, l := range Labels {
		if v := d[l]; v > score {
			best, score = l, v
		}
	}
	return best, score
}

// Normalize rescales d so that it sums to 1. Negative and NaN values are
// treated as zero. A zero-mass distribution is returned unchanged.
func (d Distribution) Normalize() Distribution {
	out := NewDistribution()
	var total float64
	for _, l := range Labels {
		v := d[l]
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		out[l] = v
		total += v
	}
	if total == 0 {
		return out
	}
	for l, v := range out {
		out[l] = v / total
	}
	return out
}

// SafePathElement reports whether s can be used as a single directory name
// below a fixed root.
func SafePathElement(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	if strings.ContainsAny(s, `/\`) || strings.ContainsRune(s, 0) {
		return false
	}
	return filepath.Base(s) == s
}
