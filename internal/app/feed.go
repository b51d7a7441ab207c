package app

import "sync"

// Feed fans encoded frames out to live-video subscribers. Each subscriber
// gets a buffer of one frame; a subscriber that falls behind sees only the
// newest frame, so Publish never blocks.
type Feed struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

// NewFeed creates an open Feed with no subscribers.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a new subscriber. The returned channel is closed when
// the feed closes or cancel is called. Subscribing to a closed feed returns an
// already closed channel.
func (f *Feed) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		close(ch)
		return ch, func() {}
	}
	f.subs[ch] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.subs[ch]; ok {
				delete(f.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Publish delivers frame to every subscriber, replacing any frame a
// subscriber has not read yet.
func (f *Feed) Publish(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for ch := range f.subs {
		select {
		case ch <- frame:
		default:
			// Drop the stale frame and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// Close ends every subscription. Later calls are no-ops.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.subs {
		close(ch)
		delete(f.subs, ch)
	}
}

// Subscribers returns the number of active subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Closed reports whether the feed has been closed.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
