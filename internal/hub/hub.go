package hub

import "sync"

// Conn is the delivery side of a live connection. Enqueue must not block;
// it reports false when the payload was dropped (slow consumer).
type Conn interface {
	Enqueue(payload []byte) bool
}

// Hub is the connection registry: userID -> set of live connections. It owns
// only the mapping; connection lifetime belongs to the session layer, which
// adds itself after the user identity is bound and removes itself on close.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]struct{}
}

func New() *Hub {
	return &Hub{conns: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(userID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[userID]
	if !ok {
		set = make(map[Conn]struct{})
		h.conns[userID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) Remove(userID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, userID)
		}
	}
}

// SendToUser fans out to every connection of the user (all tabs/devices) and
// returns how many accepted the payload. Zero means the user is not reachable
// over the socket; callers rely on persistence for later pickup.
func (h *Hub) SendToUser(userID string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.conns[userID] {
		if c.Enqueue(payload) {
			n++
		}
	}
	return n
}

// Broadcast sends to every registered connection. Used for presence
// transitions which every client renders.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.conns {
		for c := range set {
			c.Enqueue(payload)
		}
	}
}

// Connections reports the number of live registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.conns {
		n += len(set)
	}
	return n
}
