package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/moodlens/internal/emotion"
)

func TestState_DefaultEmotionsAreZero(t *testing.T) {
	s := New()

	d := s.Emotions()
	require.Len(t, d, len(emotion.Labels))
	assert.Zero(t, d.Sum())

	label, score := s.TopEmotion()
	assert.Empty(t, label)
	assert.Zero(t, score)
}

func TestState_SetEmotionsReplacesWholesale(t *testing.T) {
	s := New()

	s.SetEmotions(emotion.Distribution{emotion.Happy: 0.8, emotion.Sad: 0.2})
	s.SetEmotions(emotion.Distribution{emotion.Fear: 1.0})

	d := s.Emotions()
	assert.Zero(t, d[emotion.Happy], "previous values must not be merged")
	assert.Equal(t, 1.0, d[emotion.Fear])
}

func TestState_EmotionsReturnsCopy(t *testing.T) {
	s := New()
	in := emotion.Distribution{emotion.Happy: 1.0}
	s.SetEmotions(in)

	in[emotion.Happy] = 0
	out := s.Emotions()
	out[emotion.Happy] = 0.5

	assert.Equal(t, 1.0, s.Emotions()[emotion.Happy])
}

func TestState_HistoryBounds(t *testing.T) {
	s := New()

	for i := 0; i < 25; i++ {
		n := s.AppendFrame(FrameRecord{Image: []byte{byte(i)}, Label: emotion.Happy})
		assert.LessOrEqual(t, n, HistoryCapacity)
	}

	assert.Equal(t, HistoryCapacity, s.HistoryLen())

	recent := s.RecentFrames(HistoryWindow)
	require.Len(t, recent, HistoryWindow)

	// Oldest of the kept window first, most recent last.
	for i, rec := range recent {
		assert.Equal(t, byte(15+i), rec.Image[0])
	}
}

func TestState_RecentFramesFewerThanWindow(t *testing.T) {
	s := New()
	assert.Empty(t, s.RecentFrames(HistoryWindow))

	s.AppendFrame(FrameRecord{Image: []byte("a"), Label: emotion.Sad})
	s.AppendFrame(FrameRecord{Image: []byte("b"), Label: emotion.Happy})

	recent := s.RecentFrames(HistoryWindow)
	require.Len(t, recent, 2)
	assert.Equal(t, emotion.Sad, recent[0].Label)
	assert.Equal(t, emotion.Happy, recent[1].Label)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.SetEmotions(emotion.Distribution{emotion.Happy: 0.5, emotion.Sad: 0.5})
			s.AppendFrame(FrameRecord{Image: []byte(fmt.Sprint(i)), CapturedAt: time.Now()})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			d := s.Emotions()
			sum := d.Sum()
			// Either the zero default or a complete replacement, never partial.
			if sum != 0 {
				assert.InDelta(t, 1.0, sum, 1e-9)
			}
			assert.LessOrEqual(t, len(s.RecentFrames(HistoryWindow)), HistoryWindow)
		}
	}()
	wg.Wait()
}
