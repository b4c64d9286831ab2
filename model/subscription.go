package model

import "time"

// State describes where a subscription is in its lifecycle.
type State string

const (
	// StateNew is a subscription created for a WebSocket client that the
	// hub has not verified yet.
	StateNew State = "new"

	// StateActive is a subscription the hub has confirmed. Renewal is
	// scheduled while a subscription is active.
	StateActive State = "active"

	// StatePendingUnsubscribe marks a subscription whose WebSocket has
	// closed and whose unsubscribe request is awaiting hub confirmation.
	StatePendingUnsubscribe State = "pending-unsubscribe"

	// StateRemoved marks a subscription on its way out of the store.
	StateRemoved State = "removed"
)

// SocketWriter is the non-owning handle a subscription keeps to its bound
// WebSocket. The connection itself is owned by the gateway that accepted it.
type SocketWriter interface {
	Send(data []byte) error
}

// RenewalHandle cancels a scheduled lease renewal. Cancel must be
// idempotent and safe to call after the subscription has been removed.
type RenewalHandle interface {
	Cancel()
}

// Subscription is a single client's WebSub subscription, keyed by its
// callback id for the lifetime of the WebSocket connection.
type Subscription struct {
	Callback     string    `json:"callback"`
	Hub          string    `json:"hub"`
	Topic        string    `json:"topic"`
	Secret       string    `json:"secret"`
	LeaseSeconds int       `json:"lease_seconds"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`

	Socket  SocketWriter  `json:"-"`
	Renewal RenewalHandle `json:"-"`
}
