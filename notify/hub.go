package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// Hub fans out new-result envelopes to websocket subscribers, keyed by
// participation. Slow subscribers lose messages rather than stalling the
// broadcast.
type Hub struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]chan []byte
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uuid.UUID][]chan []byte)}
}

func (h *Hub) Subscribe(participationID uuid.UUID) (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan []byte, 32)
	h.subs[participationID] = append(h.subs[participationID], ch)
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		channels := h.subs[participationID]
		for i, c := range channels {
			if c == ch {
				h.subs[participationID] = append(channels[:i], channels[i+1:]...)
				close(ch)
				break
			}
		}
		if len(h.subs[participationID]) == 0 {
			delete(h.subs, participationID)
		}
	}
	return ch, cancel
}

func (h *Hub) Broadcast(participationID uuid.UUID, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[participationID] {
		select {
		case ch <- payload:
		default:
		}
	}
}

// ServeWS upgrades the request and streams hub messages for one
// participation until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, participationID uuid.UUID) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Default().Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, cancel := h.Subscribe(participationID)
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
