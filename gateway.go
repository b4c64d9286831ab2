package subscriber

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/securedimensions/websub-subscriber/model"
)

// handleSocket accepts an inbound WebSocket connection and opens a WebSub
// subscription on the client's behalf. Request validation happens before
// the upgrade so rejections carry proper HTTP status codes; a disallowed
// origin fails the upgrade itself.
func (s *Subscriber) handleSocket(w http.ResponseWriter, r *http.Request) {
	req := &model.SocketRequest{LeaseSeconds: s.leaseSeconds}

	if err := decodeQuery(r, req); err != nil {
		http.Error(w, "invalid query parameters", http.StatusBadRequest)
		return
	}

	if err := v.Struct(req); err != nil {
		http.Error(w, "parameters topic and hub required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)

	if err != nil {
		// Upgrade already wrote the handshake error, including the 403
		// for a disallowed origin.
		s.logger.Error("websocket upgrade failed", "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	sock := newSocket(conn)

	sub := &model.Subscription{
		Callback:     uuid.NewString(),
		Hub:          req.Hub,
		Topic:        req.Topic,
		Secret:       newSecret(),
		LeaseSeconds: req.LeaseSeconds,
		State:        model.StateNew,
		CreatedAt:    time.Now(),
		Socket:       sock,
	}

	if err := s.store.Add(sub); err != nil {
		s.logger.Error("failed to store subscription", "topic", sub.Topic, "error", err)
		sock.Close()
		return
	}

	s.logger.Info("subscription created", "topic", sub.Topic, "callback", sub.Callback,
		"hub", sub.Hub, "lease_seconds", sub.LeaseSeconds)

	s.Request(*sub, ModeSubscribe)

	go s.readLoop(sock, sub.Callback)
}

// readLoop drains the client connection until it closes, then begins
// subscription teardown. Clients only ever receive; anything they send is
// discarded.
func (s *Subscriber) readLoop(sock *socket, callback string) {
	for {
		if _, _, err := sock.conn.ReadMessage(); err != nil {
			break
		}
	}

	sock.Close()
	s.teardown(callback)
}

// teardown cancels renewal, marks the subscription pending-unsubscribe,
// and asks the hub to stop. Removal from the store happens when the hub
// confirms the unsubscribe.
func (s *Subscriber) teardown(callback string) {
	var snapshot model.Subscription

	err := s.store.Update(callback, func(sub *model.Subscription) error {
		if sub.Renewal != nil {
			sub.Renewal.Cancel()
			sub.Renewal = nil
		}

		sub.State = model.StatePendingUnsubscribe
		sub.Socket = nil
		snapshot = *sub
		return nil
	})

	if err != nil {
		// Already removed; the hub confirmed an unsubscribe first.
		return
	}

	s.logger.Info("socket closed, unsubscribing", "callback", callback, "topic", snapshot.Topic)

	s.Request(snapshot, ModeUnsubscribe)
}
