package subscriber

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/jpillora/backoff"

	"github.com/securedimensions/websub-subscriber/model"
)

const requestAttempts = 3

// Request queues an asynchronous subscribe or unsubscribe request to the
// subscription's hub. It never blocks the caller's control flow; the
// outcome is logged, and an initial subscribe rejection is additionally
// reported to the originating WebSocket.
func (s *Subscriber) Request(sub model.Subscription, mode string) {
	s.worker.Add(RequestJob{Subscription: sub, Mode: mode})
}

// dispatch sends a queued hub request and handles its outcome.
func (s *Subscriber) dispatch(job RequestJob) {
	sub := job.Subscription

	log := s.logger.With("mode", job.Mode, "topic", sub.Topic, "callback", sub.Callback)

	status, body, err := s.send(sub, job.Mode)

	if err != nil {
		log.Error("hub request failed", "hub", sub.Hub, "error", err)
		return
	}

	// Per WebSub the hub acknowledges with 202; anything below the 3xx
	// boundary counts as accepted.
	if status >= 300 {
		log.Error("hub request rejected", "hub", sub.Hub, "status", status)

		if job.Mode == ModeSubscribe && sub.State == model.StateNew {
			s.emit(SubscribeFailed{Subscription: sub, Status: status})

			if sub.Socket != nil {
				msg := fmt.Sprintf("subscribe request returned error: %s", body)
				if err := sub.Socket.Send([]byte(msg)); err != nil {
					log.Error("failed to report subscribe error to socket", "error", err)
				}
			}
		}
		return
	}

	log.Info("hub request accepted", "status", status)
}

// send posts the subscription request form to the hub, retrying transport
// errors with backoff. Redirects are not followed; the hub's final status
// and body are returned as-is.
func (s *Subscriber) send(sub model.Subscription, mode string) (int, []byte, error) {
	form := url.Values{}
	form.Set("hub.mode", mode)
	form.Set("hub.topic", url.QueryEscape(sub.Topic))
	form.Set("hub.callback", s.callbackURL+"/callback/"+sub.Callback)

	if mode == ModeSubscribe {
		form.Set("hub.secret", sub.Secret)
		form.Set("hub.lease_seconds", strconv.Itoa(sub.LeaseSeconds))
	}

	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    10 * time.Second,
		Factor: 2,
		Jitter: false,
	}

	var attempts int

	for {
		res, err := s.client.PostForm(sub.Hub, form)

		if err == nil {
			body, readErr := io.ReadAll(io.LimitReader(res.Body, 4096))
			res.Body.Close()

			if readErr != nil {
				body = nil
			}

			return res.StatusCode, body, nil
		}

		attempts++

		if attempts >= requestAttempts {
			return 0, nil, err
		}

		<-time.After(b.Duration())
	}
}

// newSecret returns 16 random bytes hex-encoded, the shared HMAC key for
// one subscription lease.
func newSecret() string {
	b := make([]byte, 16)

	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return hex.EncodeToString(b)
}
