// Package stream is a small in-process pub/sub hub keyed by gateway
// conversation id. It replaces a bare shared map of live response writers:
// subscribers get a channel with an explicit unsubscribe tied to connection
// teardown, and publishing never blocks on a slow consumer.
package stream

import "sync"

type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan []byte]struct{})}
}

// Subscribe registers interest in one conversation id. The returned cancel
// func must be called on connection teardown; it closes the channel.
func (h *Hub) Subscribe(key string) (<-chan []byte, func()) {
	ch := make(chan []byte, 4)
	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[chan []byte]struct{})
	}
	h.subs[key][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[key]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, key)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers msg to every active subscriber of key. Subscribers with
// a full buffer are skipped rather than blocking the callback path.
func (h *Hub) Publish(key string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for ch := range h.subs[key] {
		select {
		case ch <- msg:
			n++
		default:
		}
	}
	return n
}

// Subscribers reports the number of active subscribers for key.
func (h *Hub) Subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[key])
}
