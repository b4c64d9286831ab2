package subscriber

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/securedimensions/websub-subscriber/model"
	"github.com/securedimensions/websub-subscriber/store"
)

const maxChallengeBytes = 200

var (
	errNotPending  = errors.New("unsubscribe not allowed")
	errTearingDown = errors.New("subscription is being torn down")
)

// handleVerify handles the hub's intent verification round-trip for both
// subscribe and unsubscribe. The checks and status codes follow the order
// the hub expects: parameter validation first, then the subscription
// state transition, then the challenge echo.
func (s *Subscriber) handleVerify(w http.ResponseWriter, r *http.Request) {
	callback := chi.URLParam(r, "id")

	log := s.logger.With("callback", callback)

	req := model.ParseVerifyRequest(r.URL.Query())

	if req.Mode == "" {
		http.Error(w, "parameter hub.mode required", http.StatusBadRequest)
		return
	}

	if req.Mode != ModeSubscribe && req.Mode != ModeUnsubscribe {
		http.Error(w, "hub.mode not allowed: "+req.Mode, http.StatusNotImplemented)
		return
	}

	if req.Topic == "" {
		http.Error(w, "parameter hub.topic required", http.StatusBadRequest)
		return
	}

	// The outbound request carries the topic query-escaped, so the hub
	// echoes it back the same way.
	topic, err := url.QueryUnescape(req.Topic)

	if err != nil {
		topic = req.Topic
	}

	if len(req.Challenge) > maxChallengeBytes {
		http.Error(w, "parameter hub.challenge exceeds limit of 200 bytes", http.StatusBadRequest)
		return
	}

	log = log.With("mode", req.Mode, "topic", topic)

	switch req.Mode {
	case ModeSubscribe:
		if msg, status := s.confirmSubscribe(callback, req); status != 0 {
			log.Error("subscribe verification rejected", "reason", msg, "status", status)
			http.Error(w, msg, status)
			return
		}

		log.Info("subscription active")
	case ModeUnsubscribe:
		if msg, status := s.confirmUnsubscribe(callback); status != 0 {
			log.Error("unsubscribe verification rejected", "reason", msg, "status", status)
			http.Error(w, msg, status)
			return
		}

		log.Info("subscription removed")
	}

	// Echo the challenge back verbatim as proof of possession.
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(req.Challenge))
}

// confirmSubscribe transitions a subscription to active and arms its
// lease renewal. A re-verification after a renewal's own subscribe POST
// must find the renewal already armed and leave it alone.
func (s *Subscriber) confirmSubscribe(callback string, req *model.VerifyRequest) (string, int) {
	if _, err := s.store.Get(callback); err != nil {
		return "subscription not found for callback: " + callback, http.StatusNotFound
	}

	if req.LeaseSeconds == "" {
		return "parameter hub.lease_seconds required", http.StatusBadRequest
	}

	lease, err := strconv.Atoi(req.LeaseSeconds)

	if err != nil {
		return "parameter hub.lease_seconds must be a number", http.StatusBadRequest
	}

	if lease < 60 {
		return "parameter hub.lease_seconds must be at least 60", http.StatusBadRequest
	}

	var snapshot model.Subscription

	err = s.store.Update(callback, func(sub *model.Subscription) error {
		// A late verification of a renewal must not resurrect a
		// subscription whose socket already closed.
		if sub.State == model.StatePendingUnsubscribe || sub.State == model.StateRemoved {
			return errTearingDown
		}

		// The hub may have adjusted the lease to its own policy.
		sub.LeaseSeconds = lease

		if req.Secret != "" {
			sub.Secret = req.Secret
		}

		sub.State = model.StateActive

		if sub.Renewal == nil {
			sub.Renewal = s.armRenewal(callback, lease)
		}

		snapshot = *sub
		return nil
	})

	if err != nil {
		return "subscription not found for callback: " + callback, http.StatusNotFound
	}

	s.emit(Subscribed{Subscription: snapshot})

	return "", 0
}

// confirmUnsubscribe removes a subscription whose teardown was
// client-initiated. Anything else, including an unknown callback, is
// forbidden so a hub cannot cancel a live subscription on its own.
func (s *Subscriber) confirmUnsubscribe(callback string) (string, int) {
	var snapshot model.Subscription

	err := s.store.Update(callback, func(sub *model.Subscription) error {
		if sub.State != model.StatePendingUnsubscribe {
			return errNotPending
		}

		if sub.Renewal != nil {
			sub.Renewal.Cancel()
			sub.Renewal = nil
		}

		sub.State = model.StateRemoved
		snapshot = *sub
		return nil
	})

	if err != nil {
		return "unsubscribe not allowed", http.StatusForbidden
	}

	if err := s.store.Remove(callback); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("failed to remove subscription", "callback", callback, "error", err)
	}

	s.emit(Unsubscribed{Subscription: snapshot})

	return "", 0
}
