package notify

import (
	"log/slog"
	"sync"
)

// Channel is a live delivery endpoint for one connected session.
type Channel interface {
	Send(event Event) error
}

// Hub maps account identities to their live channels. An account connected
// from several devices holds several channels; an account with none simply
// misses the event (delivery is best-effort and session-scoped).
type Hub struct {
	mu     sync.RWMutex
	byUser map[string]map[Channel]struct{}
	userOf map[Channel]string
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		byUser: make(map[string]map[Channel]struct{}),
		userOf: make(map[Channel]string),
		logger: logger,
	}
}

// Subscribe registers a channel under the account identity.
func (h *Hub) Subscribe(userID string, ch Channel) {
	if userID == "" || ch == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.byUser[userID]
	if !ok {
		set = make(map[Channel]struct{})
		h.byUser[userID] = set
	}
	set[ch] = struct{}{}
	h.userOf[ch] = userID
}

// Unsubscribe removes a single channel. Other channels registered for the
// same identity are unaffected.
func (h *Hub) Unsubscribe(ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(ch)
}

func (h *Hub) removeLocked(ch Channel) {
	userID, ok := h.userOf[ch]
	if !ok {
		return
	}
	delete(h.userOf, ch)
	if set, ok := h.byUser[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.byUser, userID)
		}
	}
}

// Publish delivers the event to every channel registered for the identity
// and reports how many channels received it. Zero channels means the event
// is dropped. Send failures evict the failing channel but never propagate.
func (h *Hub) Publish(userID string, event Event) int {
	h.mu.RLock()
	channels := make([]Channel, 0, len(h.byUser[userID]))
	for ch := range h.byUser[userID] {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, ch := range channels {
		if err := ch.Send(event); err != nil {
			h.logger.Warn("notify: dropping channel after failed delivery",
				slog.String("user_id", userID),
				slog.String("event", string(event.Type)),
				slog.Any("err", err),
			)
			h.Unsubscribe(ch)
			continue
		}
		delivered++
	}
	return delivered
}

// Connections reports the number of live channels for an identity.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}
