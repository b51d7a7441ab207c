// Package state holds the mutable application state shared between the frame
// pipeline and the HTTP handlers.
package state

import (
	"sync"
	"time"

	"github.com/ayusman/moodlens/internal/emotion"
)

// History bounds.
const (
	// HistoryCapacity is the number of frames kept before the oldest is evicted.
	HistoryCapacity = 11
	// HistoryWindow is the number of frames served to clients.
	HistoryWindow = 10
)

// FrameRecord is an annotated JPEG frame and the top label seen when it was
// captured. Records are never modified after they are appended.
type FrameRecord struct {
	Image      []byte
	Label      emotion.Label
	CapturedAt time.Time
}

// State is the shared emotion distribution plus the recent frame history.
// The zero value is not usable; create one with New.
type State struct {
	emotionsMu sync.Mutex
	emotions   emotion.Distribution

	historyMu sync.Mutex
	history   []FrameRecord
	capacity  int
}

// New creates a State with an all-zero distribution and an empty history.
func New() *State {
	return &State{
		emotions: emotion.NewDistribution(),
		history:  make([]FrameRecord, 0, HistoryCapacity+1),
		capacity: HistoryCapacity,
	}
}

// Emotions returns a copy of the current distribution.
func (s *State) Emotions() emotion.Distribution {
	s.emotionsMu.Lock()
	defer s.emotionsMu.Unlock()
	return s.emotions.Clone()
}

// SetEmotions replaces the current distribution wholesale.
func (s *State) SetEmotions(d emotion.Distribution) {
	next := d.Clone()

	s.emotionsMu.Lock()
	s.emotions = next
	s.emotionsMu.Unlock()
}

// TopEmotion returns the most likely label of the current distribution.
func (s *State) TopEmotion() (emotion.Label, float64) {
	return s.Emotions().Top()
}

// AppendFrame adds rec to the history, evicting the oldest records once the
// capacity is exceeded. It returns the history length after eviction.
func (s *State) AppendFrame(rec FrameRecord) int {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append(s.history, rec)
	if over := len(s.history) - s.capacity; over > 0 {
		// Shift left instead of reslicing so the backing array does not grow.
		copy(s.history, s.history[over:])
		for i := len(s.history) - over; i < len(s.history); i++ {
			s.history[i] = FrameRecord{}
		}
		s.history = s.history[:len(s.history)-over]
	}
	return len(s.history)
}

// RecentFrames returns up to n of the most recent records, oldest first.
func (s *State) RecentFrames(n int) []FrameRecord {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	if n <= 0 || len(s.history) == 0 {
		return []FrameRecord{}
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]FrameRecord, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// HistoryLen returns the number of stored records.
func (s *State) HistoryLen() int {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	return len(s.history)
}
