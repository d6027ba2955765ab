package session

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// subscriberBuffer is how many messages a viewer may lag behind before it is
// disconnected.
const subscriberBuffer = 256

// Message is a single websocket frame queued for a viewer.
type Message struct {
	Kind int // websocket.BinaryMessage or websocket.TextMessage
	Data []byte
}

// Subscriber receives a copy of every message broadcast by a Hub.
type Subscriber struct {
	C    <-chan Message
	send chan Message
	once sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans feed output out to the viewers of a session. Broadcast never
// blocks: it is called from inside the playback engine.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
	log         *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{subscribers: make(map[*Subscriber]struct{}), log: log}
}

// Subscribe registers a new viewer. The returned subscriber's channel is
// closed when the viewer is dropped or the hub is closed.
func (h *Hub) Subscribe() *Subscriber {
	ch := make(chan Message, subscriberBuffer)
	sub := &Subscriber{C: ch, send: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.close()
		return sub
	}
	h.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a viewer. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		sub.close()
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// BroadcastOutput sends terminal output to all viewers.
func (h *Hub) BroadcastOutput(data string) {
	h.broadcast(Message{Kind: websocket.BinaryMessage, Data: []byte(data)})
}

// BroadcastEvent sends a JSON-encoded event to all viewers.
func (h *Hub) BroadcastEvent(data []byte) {
	h.broadcast(Message{Kind: websocket.TextMessage, Data: data})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.send <- msg:
		default:
			// Viewer fell too far behind.
			h.log.Warn("dropping slow viewer", slog.Int("buffered", len(sub.send)))
			delete(h.subscribers, sub)
			sub.close()
		}
	}
}

// Close disconnects all viewers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		sub.close()
	}
}
