package chess

import "sync"

type subscriberEntry struct {
	id int
	ch chan Event
}

// hub fans session events out to subscribers. A full subscriber misses events rather than
// blocking the session that publishes them.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string][]subscriberEntry
}

func newHub() *hub {
	return &hub{subs: make(map[string][]subscriberEntry)}
}

func (h *hub) subscribe(sessionID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	entry := subscriberEntry{id: h.nextID, ch: make(chan Event, subscriberBuffer)}
	h.subs[sessionID] = append(h.subs[sessionID], entry)

	var once sync.Once
	return entry.ch, func() {
		once.Do(func() { h.remove(sessionID, entry.id) })
	}
}

func (h *hub) remove(sessionID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[sessionID]
	for i, e := range list {
		if e.id == id {
			close(e.ch)
			h.subs[sessionID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

func (h *hub) publish(sessionID string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.subs[sessionID] {
		select {
		case e.ch <- ev:
		default:
		}
	}
}

func (h *hub) closeSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.subs[sessionID] {
		close(e.ch)
	}
	delete(h.subs, sessionID)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, list := range h.subs {
		for _, e := range list {
			close(e.ch)
		}
		delete(h.subs, id)
	}
}

func (h *hub) count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}
