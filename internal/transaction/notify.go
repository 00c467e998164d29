package transaction

import "sync"

// UpdateHub fans transaction status changes out to per-player subscribers.
type UpdateHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Update]struct{}
}

func NewUpdateHub() *UpdateHub {
	return &UpdateHub{
		subscribers: make(map[string]map[chan Update]struct{}),
	}
}

// Subscribe returns a buffered channel of updates for playerID and a cancel
// func that must be called when the subscriber goes away.
func (h *UpdateHub) Subscribe(playerID string) (<-chan Update, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Update, 10)
	if h.subscribers[playerID] == nil {
		h.subscribers[playerID] = make(map[chan Update]struct{})
	}
	h.subscribers[playerID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subscribers[playerID], ch)
			if len(h.subscribers[playerID]) == 0 {
				delete(h.subscribers, playerID)
			}
			close(ch)
		})
	}
}

func (h *UpdateHub) Notify(update Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[update.PlayerID] {
		select {
		case ch <- update:
		default:
			// slow subscriber, drop
		}
	}
}
