package store

import (
	"errors"

	"github.com/securedimensions/websub-subscriber/model"
)

var (
	// ErrNotFound is returned when no subscription exists for a callback id.
	ErrNotFound = errors.New("subscription not found")

	// ErrDuplicate is returned when adding a callback id that already exists.
	ErrDuplicate = errors.New("callback id already exists")
)

// Store defines an interface for subscription storage keyed by callback id.
type Store interface {
	// Add saves a new subscription. The callback id must be unique across
	// all live subscriptions.
	Add(sub *model.Subscription) error

	// Get retrieves a snapshot of the subscription for a callback id.
	Get(callback string) (*model.Subscription, error)

	// Update applies fn to the stored subscription as one atomic step.
	// No partial mutation is observable by other goroutines. fn must not
	// mutate the subscription when it returns an error.
	Update(callback string, fn func(sub *model.Subscription) error) error

	// Remove removes the subscription for the callback id.
	Remove(callback string) error

	// Each calls fn for every live subscription as one atomic step, with
	// the same mutation guarantees as Update.
	Each(fn func(sub *model.Subscription))

	// Len reports the number of live subscriptions.
	Len() int
}
