package hub

import (
	"context"
	"encoding/json"
	"sync"

	"thermal_dashboard/internal/logger"
)

// Envelope types sent to browsers.
const (
	TypeSnapshot = "snapshot"
	TypeChart    = "chart"
	TypeStatus   = "status"
	TypeLoading  = "loading"
	TypeControls = "controls"
	TypeBye      = "bye"
)

const sendBuffer = 64

// Envelope is the JSON frame written to every client.
type Envelope struct {
	Type  string      `json:"type"`
	Key   string      `json:"key,omitempty"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type message struct {
	// cacheKey, when set, makes the payload part of the state replayed to
	// newly connected clients.
	cacheKey string
	payload  []byte
}

type client struct {
	send chan []byte
}

// Hub fans dashboard updates out to connected browsers. Updates are cached by
// key so a client that connects late starts from the current state.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mutex      sync.RWMutex
	log        *logger.Logger

	// owned by Run
	latest map[string][]byte
	order  []string

	statusMu  sync.Mutex
	statusMsg string
	statusOn  bool
}

func New(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan message, sendBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		latest:     make(map[string][]byte),
		log:        log,
	}
}

// Run serves the hub until ctx is cancelled. All client sets and the state
// cache are touched only from here.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			h.mutex.Unlock()
			for _, k := range h.order {
				h.deliver(c, h.latest[k])
			}
			if h.log != nil {
				h.log.Infow("ws_client_connected", "clients", h.ClientCount())
			}

		case c := <-h.unregister:
			h.drop(c)
			if h.log != nil {
				h.log.Infow("ws_client_disconnected", "clients", h.ClientCount())
			}

		case m := <-h.broadcast:
			if m.cacheKey != "" {
				if _, ok := h.latest[m.cacheKey]; !ok {
					h.order = append(h.order, m.cacheKey)
				}
				h.latest[m.cacheKey] = m.payload
			}
			h.mutex.RLock()
			targets := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				targets = append(targets, c)
			}
			h.mutex.RUnlock()
			for _, c := range targets {
				h.deliver(c, m.payload)
			}
		}
	}
}

// deliver never blocks the hub: a client that cannot keep up is dropped.
func (h *Hub) deliver(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		if h.log != nil {
			h.log.Warnw("ws_client_too_slow")
		}
		h.drop(c)
	}
}

func (h *Hub) drop(c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ClientCount returns the number of connected browsers.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Publish broadcasts an envelope. A non-empty key also stores it as the
// current value replayed to new clients.
func (h *Hub) Publish(typ, key string, data interface{}) {
	h.send(key, Envelope{Type: typ, Key: key, Data: data})
}

func (h *Hub) send(cacheKey string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_encode_failed", "type", env.Type, "err", err)
		}
		return
	}
	select {
	case h.broadcast <- message{cacheKey: cacheKey, payload: payload}:
	case <-h.done:
	}
}
