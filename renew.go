package subscriber

import (
	"errors"
	"sync"
	"time"

	"github.com/securedimensions/websub-subscriber/model"
)

var errNotActive = errors.New("subscription no longer active")

// renewal is the cancellation handle for a scheduled lease renewal.
type renewal struct {
	stop chan struct{}
	once sync.Once
}

// Cancel stops the renewal. It is idempotent and safe to call after the
// owning subscription has been removed.
func (r *renewal) Cancel() {
	r.once.Do(func() {
		close(r.stop)
	})
}

// armRenewal schedules a recurring renewal ahead of lease expiry. The
// interval is fixed at arm time; later lease adjustments by the hub only
// take effect when verification re-arms an absent handle.
func (s *Subscriber) armRenewal(callback string, leaseSeconds int) *renewal {
	interval := time.Duration(leaseSeconds-s.leaseSkew) * time.Second

	if interval <= 0 {
		interval = time.Second
	}

	r := &renewal{stop: make(chan struct{})}

	go s.runRenewal(r, callback, interval)

	return r
}

func (s *Subscriber) runRenewal(r *renewal, callback string, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.renew(callback)
		case <-r.stop:
			return
		}
	}
}

// renew rotates the subscription's secret and re-issues the subscribe
// request with the lease negotiated at arm time. The hub's verification
// round-trip confirms the renewed lease. A firing that raced a cancel or
// removal is a no-op.
func (s *Subscriber) renew(callback string) {
	var snapshot model.Subscription

	err := s.store.Update(callback, func(sub *model.Subscription) error {
		if sub.State != model.StateActive {
			return errNotActive
		}

		sub.Secret = newSecret()
		snapshot = *sub
		return nil
	})

	if err != nil {
		s.logger.Debug("skipping renewal", "callback", callback, "error", err)
		return
	}

	s.logger.Info("renewing subscription", "callback", callback, "topic", snapshot.Topic,
		"lease_seconds", snapshot.LeaseSeconds)

	s.Request(snapshot, ModeSubscribe)
}
