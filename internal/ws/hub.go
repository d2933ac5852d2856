package ws

import "sync"

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// replayLimit bounds how many past events are kept per generation for
// late subscribers. A pipeline emits a fixed handful of stage events, so a
// small cap is plenty.
const replayLimit = 32

// Hub fans generation progress events out to stream subscribers keyed by
// generation ID. Events published before a client connects are replayed on
// subscription, since pipeline stages can finish faster than a browser
// opens its socket.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Subscriber]struct{}
	history map[string][][]byte
}

// NewHub creates an initialized Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[Subscriber]struct{}),
		history: make(map[string][][]byte),
	}
}

// Subscribe adds a client to a generation stream and replays any events
// published so far.
func (h *Hub) Subscribe(generationID string, client Subscriber) {
	h.mu.Lock()
	if _, ok := h.clients[generationID]; !ok {
		h.clients[generationID] = make(map[Subscriber]struct{})
	}
	h.clients[generationID][client] = struct{}{}
	replay := make([][]byte, len(h.history[generationID]))
	copy(replay, h.history[generationID])
	h.mu.Unlock()

	for _, payload := range replay {
		if err := client.Send(payload); err != nil {
			h.Unsubscribe(generationID, client)
			client.Close()
			return
		}
	}
}

// Unsubscribe removes a client.
func (h *Hub) Unsubscribe(generationID string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[generationID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, generationID)
		}
	}
}

// Publish sends payload to all subscribers of a generation and records it
// for replay.
func (h *Hub) Publish(generationID string, payload []byte) {
	h.mu.Lock()
	if len(h.history[generationID]) < replayLimit {
		h.history[generationID] = append(h.history[generationID], payload)
	}
	targets := make([]Subscriber, 0, len(h.clients[generationID]))
	for c := range h.clients[generationID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			h.Unsubscribe(generationID, c)
			c.Close()
		}
	}
}

// Forget drops the replay history for a finished generation.
func (h *Hub) Forget(generationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.history, generationID)
}
