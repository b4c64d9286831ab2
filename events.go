package subscriber

import (
	"sync"

	"github.com/securedimensions/websub-subscriber/model"
)

// Subscribed is an event emitted when the hub confirms a subscription,
// including re-confirmations after lease renewal.
type Subscribed struct {
	Subscription model.Subscription
}

// SubscribeFailed is an event emitted when the hub rejects the initial
// subscribe request for a new subscription.
type SubscribeFailed struct {
	Subscription model.Subscription
	Status       int
}

// Unsubscribed is an event emitted when the hub confirms an unsubscribe
// and the subscription leaves the store.
type Unsubscribed struct {
	Subscription model.Subscription
}

type handlerList struct {
	mu  sync.RWMutex
	fns []func(evt any)
}

// On registers fn to be called with lifecycle events.
func (s *Subscriber) On(fn func(evt any)) {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()

	s.events.fns = append(s.events.fns, fn)
}

func (s *Subscriber) emit(evt any) {
	s.events.mu.RLock()
	defer s.events.mu.RUnlock()

	for _, fn := range s.events.fns {
		fn(evt)
	}
}
