package websocket

import (
	"context"
	"sync"
)

type requestKind int

const (
	registerClient requestKind = iota
	unregisterClient
)

type request struct {
	kind   requestKind
	client *Client
}

// Hub fans bus messages out to the websocket clients subscribed to each channel.
type Hub struct {
	mu sync.RWMutex

	clients  map[string]*Client
	channels map[string]map[*Client]struct{}

	// one queue keeps a register ahead of the matching unregister
	requests chan request
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan request, 512),
	}
}

// Run applies membership changes until ctx is cancelled. Clients still
// connected at that point are closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case req := <-h.requests:
			switch req.kind {
			case registerClient:
				h.addClient(req.client)
			case unregisterClient:
				h.removeClient(req.client)
			}
		}
	}
}

// Register adds client under the channels it was created with.
func (h *Hub) Register(client *Client) {
	h.requests <- request{kind: registerClient, client: client}
}

func (h *Hub) Unregister(client *Client) {
	h.requests <- request{kind: unregisterClient, client: client}
}

// Broadcast sends payload to every client subscribed to channel. Slow
// clients lose the frame rather than stall the caller.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	for c := range h.channels[channel] {
		c.SendMessage(payload)
	}
	h.mu.RUnlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	for _, channel := range client.Channels() {
		if _, ok := h.channels[channel]; !ok {
			h.channels[channel] = make(map[*Client]struct{})
		}
		h.channels[channel][client] = struct{}{}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.Channels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.channels = make(map[string]map[*Client]struct{})
}
