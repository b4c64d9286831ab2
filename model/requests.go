package model

import (
	"net/url"
	"strings"
)

// SocketRequest represents the query parameters of a WebSocket subscribe.
type SocketRequest struct {
	Topic        string `form:"topic" validate:"required"`
	Hub          string `form:"hub" validate:"required,url"`
	LeaseSeconds int    `form:"lease_seconds" validate:"omitempty,min=1"`
}

// VerifyRequest represents the hub's intent verification parameters.
// WebSub parameter names contain dots, which gorilla/schema treats as
// struct path separators, so these are read straight from the query.
type VerifyRequest struct {
	Mode         string
	Topic        string
	Challenge    string
	LeaseSeconds string
	Secret       string
}

// ParseVerifyRequest extracts the hub.* parameters from a query.
func ParseVerifyRequest(q url.Values) *VerifyRequest {
	return &VerifyRequest{
		Mode:         strings.TrimSpace(q.Get("hub.mode")),
		Topic:        strings.TrimSpace(q.Get("hub.topic")),
		Challenge:    strings.TrimSpace(q.Get("hub.challenge")),
		LeaseSeconds: strings.TrimSpace(q.Get("hub.lease_seconds")),
		Secret:       q.Get("hub.secret"),
	}
}
