package app

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_DeliversInOrder(t *testing.T) {
	f := NewFeed()
	frames, cancel := f.Subscribe()
	defer cancel()

	for _, b := range []string{"a", "b", "c"} {
		f.Publish([]byte(b))
		assert.Equal(t, b, string(<-frames))
	}
}

func TestFeed_SlowSubscriberSeesNewestFrame(t *testing.T) {
	f := NewFeed()
	frames, cancel := f.Subscribe()
	defer cancel()

	f.Publish([]byte("old"))
	f.Publish([]byte("new"))

	assert.Equal(t, "new", string(<-frames))
	select {
	case b := <-frames:
		t.Fatalf("unexpected extra frame %q", b)
	default:
	}
}

func TestFeed_CloseEndsAllSubscribers(t *testing.T) {
	f := NewFeed()
	a, cancelA := f.Subscribe()
	b, cancelB := f.Subscribe()
	require.Equal(t, 2, f.Subscribers())

	f.Close()
	f.Close()

	_, ok := <-a
	assert.False(t, ok)
	_, ok = <-b
	assert.False(t, ok)
	assert.Zero(t, f.Subscribers())

	// Cancelling after close must not panic.
	cancelA()
	cancelB()
}

func TestFeed_SubscribeAfterClose(t *testing.T) {
	f := NewFeed()
	f.Close()

	frames, cancel := f.Subscribe()
	defer cancel()

	_, ok := <-frames
	assert.False(t, ok)
	f.Publish([]byte("ignored"))
}

func TestFeed_CancelUnsubscribes(t *testing.T) {
	f := NewFeed()
	frames, cancel := f.Subscribe()

	cancel()
	cancel()

	_, ok := <-frames
	assert.False(t, ok)
	assert.Zero(t, f.Subscribers())
	f.Publish([]byte("after cancel"))
}

func TestFeed_ConcurrentSubscribers(t *testing.T) {
	f := NewFeed()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		frames, cancel := f.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			for range frames {
			}
		}()
	}

	for i := 0; i < 100; i++ {
		f.Publish([]byte{byte(i)})
	}
	f.Close()
	wg.Wait()
}
