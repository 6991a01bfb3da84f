package websocket

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub tracks every connected client and handles the one broadcast that is
// genuinely hub-wide: a workflow-updated push when any client saves a
// workflow. Per-execution event delivery is NOT the hub's job — each
// Client owns its own bus.Subscribe call once it starts or subscribes to an
// execution, so that traffic never needs to go through a central fan-out
// point the way the workflow list does.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *ServerMessage

	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ServerMessage, 64),
		logger:     logger,
	}
}

// Run drives the hub's register/unregister/broadcast loop. Call it in its
// own goroutine for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Debug().Str("client_id", c.id).Int("total_clients", h.ClientCount()).Msg("websocket client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Str("client_id", c.id).Int("total_clients", h.ClientCount()).Msg("websocket client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn().Str("client_id", c.id).Msg("client send buffer full, dropping broadcast")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastWorkflowUpdated pushes a workflow-updated message to every
// connected client.
func (h *Hub) BroadcastWorkflowUpdated(wf *WorkflowDTO) {
	h.broadcast <- newWorkflowUpdatedPush(wf)
}

// ClientCount returns the number of currently registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
