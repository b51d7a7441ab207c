package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/moodlens/internal/emotion"
	"github.com/ayusman/moodlens/internal/metrics"
	"github.com/ayusman/moodlens/internal/state"
)

// Websocket timing.
const (
	broadcastInterval = 250 * time.Millisecond
	writeWait         = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type emotionsMessage struct {
	Emotions  emotion.Distribution `json:"emotions"`
	Top       emotion.Label        `json:"top"`
	Timestamp int64                `json:"timestamp"`
}

// EmotionsSocket pushes the current distribution to websocket clients.
type EmotionsSocket struct {
	state   *state.State
	logger  logrus.FieldLogger
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex

	stopCh    chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
	broadcast sync.WaitGroup
}

// NewEmotionsSocket creates an EmotionsSocket and starts its broadcaster.
func NewEmotionsSocket(s *state.State, logger logrus.FieldLogger) *EmotionsSocket {
	return newEmotionsSocket(s, logger, broadcastInterval)
}

func newEmotionsSocket(s *state.State, logger logrus.FieldLogger, interval time.Duration) *EmotionsSocket {
	h := &EmotionsSocket{
		state:    s,
		logger:   logger.WithField("component", "websocket"),
		clients:  make(map[*websocket.Conn]bool),
		stopCh:   make(chan struct{}),
		interval: interval,
	}
	h.broadcast.Add(1)
	go h.run()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EmotionsSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		metrics.WebsocketClients.Dec()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *EmotionsSocket) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster. Connected clients are left to disconnect.
func (h *EmotionsSocket) Close() {
	h.stopOnce.Do(func() { close(h.stopCh) })
	h.broadcast.Wait()
}

// run sends the distribution to all connected clients on every tick.
func (h *EmotionsSocket) run() {
	defer h.broadcast.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		emotions := h.state.Emotions()
		top, _ := emotions.Top()
		msg, err := json.Marshal(emotionsMessage{
			Emotions:  emotions,
			Top:       top,
			Timestamp: time.Now().UnixMilli(),
		})
		if err != nil {
			h.logger.WithError(err).Error("Failed to encode emotions message")
			continue
		}

		h.send(h.snapshot(), msg)
	}
}

// snapshot returns the connected clients.
func (h *EmotionsSocket) snapshot() []*websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	return conns
}

// send writes msg to every conn without holding h.mu, so slow clients do not
// delay connects and disconnects. Only the broadcaster writes to connections.
func (h *EmotionsSocket) send(conns []*websocket.Conn, msg []byte) {
	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// The reader loop in ServeHTTP notices the closed connection.
			conn.Close()
		}
	}
}
