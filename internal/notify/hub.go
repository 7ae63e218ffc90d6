package notify

import (
	"context"
	"sync"
)

// Envelope is one real-time delivery: an event name plus its payload.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Notifier pushes lifecycle events onto a user's channel. Delivery is
// fire-and-forget: no acknowledgement, no retry. Events for users with no
// live connection are dropped.
type Notifier interface {
	Emit(ctx context.Context, userID, event string, payload any) error
}

const subscriptionBuffer = 16

// Subscription is one live connection's view of a user channel.
type Subscription struct {
	C      <-chan Envelope
	ch     chan Envelope
	userID string
	hub    *Hub
	once   sync.Once
}

// Leave tears the subscription down. Safe to call more than once.
func (s *Subscription) Leave() {
	s.once.Do(func() {
		s.hub.leave(s.userID, s)
		close(s.ch)
	})
}

// Hub fans envelopes out to per-user subscriber channels. A user may hold
// several subscriptions (one per open connection).
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Join registers a subscription for userID. The caller must Leave when
// the underlying connection closes.
func (h *Hub) Join(userID string) *Subscription {
	ch := make(chan Envelope, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, userID: userID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	return sub
}

func (h *Hub) leave(userID string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[userID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Emit delivers to every live subscription of userID without blocking.
// A full subscription buffer drops the envelope for that subscriber.
func (h *Hub) Emit(_ context.Context, userID, event string, payload any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[userID] {
		select {
		case sub.ch <- Envelope{Event: event, Payload: payload}:
		default:
		}
	}
	return nil
}

// Connected reports whether userID has at least one live subscription.
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID]) > 0
}
