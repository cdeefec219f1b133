package httpapi

import (
	"io"
	"log/slog"
	"sync"

	"github.com/hperssn/parlay/internal/floor"
)

const defaultSubscriberBuffer = 64

// Hub fans floor events out to live viewers of each session. A viewer whose
// buffer is full misses the event rather than stalling the session.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan floor.Event
	nextID uint64
	buffer int
	logger *slog.Logger
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		subs:   make(map[string]map[uint64]chan floor.Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a viewer of sessionID. The returned cancel func must be
// called once the viewer goes away; it closes the channel.
func (h *Hub) Subscribe(sessionID string) (<-chan floor.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan floor.Event, h.buffer)

	viewers, ok := h.subs[sessionID]
	if !ok {
		viewers = make(map[uint64]chan floor.Event)
		h.subs[sessionID] = viewers
	}
	viewers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(sessionID, id) })
	}
}

func (h *Hub) unsubscribe(sessionID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	viewers := h.subs[sessionID]
	ch, ok := viewers[id]
	if !ok {
		return
	}
	delete(viewers, id)
	close(ch)
	if len(viewers) == 0 {
		delete(h.subs, sessionID)
	}
}

// Broadcast implements runner.Notifier.
func (h *Hub) Broadcast(sessionID string, ev floor.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("viewer too slow, dropping event",
				"session_id", sessionID, "viewer", id, "event", ev.Type)
		}
	}
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}
