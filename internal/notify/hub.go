package notify

import (
	"log/slog"
	"sync"
	"time"

	"news_crawler/internal/domain"
)

// clientBufferSize is the per-connection event buffer. A listener that falls
// this far behind is disconnected rather than allowed to block a broadcast.
const clientBufferSize = 16

// Event is one frame pushed to live-update listeners.
type Event struct {
	Event     string          `json:"event"`
	Message   string          `json:"message"`
	Article   *domain.Article `json:"article,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// ConnectedEvent is the acknowledgement sent once on connect, before any
// broadcast frames.
func ConnectedEvent() Event {
	return Event{
		Event:     "connected",
		Message:   "Connected to news notifications",
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// Hub is a process-wide registry of live-update listeners. Registration and
// broadcast run from different goroutines; the mutex is the only
// serialization around the set.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[int64]chan Event
	nextID  int64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "notify"),
		clients: make(map[int64]chan Event),
	}
}

// Register adds a listener and returns its event channel. The channel is
// closed by Unregister or by Broadcast when the listener's buffer overflows.
func (h *Hub) Register() (int64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan Event, clientBufferSize)
	h.clients[id] = ch

	h.logger.Debug("listener registered", "client_id", id, "total", len(h.clients))
	return id, ch
}

// Unregister removes a listener and closes its channel. Safe to call after
// Broadcast already removed it.
func (h *Hub) Unregister(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

// ClientCount returns the number of registered listeners.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast delivers the event to every listener. A listener whose buffer is
// full is removed in the same call, there is no separate reaper.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []int64
	for id, ch := range h.clients {
		select {
		case ch <- event:
		default:
			dead = append(dead, id)
		}
	}

	for _, id := range dead {
		h.logger.Warn("listener buffer full, dropping connection", "client_id", id)
		h.removeLocked(id)
	}
}

// NotifyNewArticle broadcasts a new-article frame to all listeners.
func (h *Hub) NotifyNewArticle(article *domain.Article) {
	h.Broadcast(Event{
		Event:     "new_article",
		Message:   "새로운 기사가 추가되었습니다. API를 통해 조회하세요.",
		Article:   article,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	h.mu.Lock()
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("new article notification sent", "listeners", count)
}

func (h *Hub) removeLocked(id int64) {
	ch, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(ch)
}
