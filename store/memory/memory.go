package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/securedimensions/websub-subscriber/model"
	"github.com/securedimensions/websub-subscriber/store"
)

const sweepInterval = 60 * time.Second

// Option configures the memory store.
type Option func(s *Store)

// WithNotify sets a callback invoked with store.Added and store.Removed
// events after each successful mutation.
func WithNotify(fn func(evt any)) Option {
	return func(s *Store) {
		s.notify = fn
	}
}

// WithLogger sets the logger used by the orphan sweep.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new memory store. A background sweep periodically logs
// subscriptions the hub never verified; they are not removed, matching
// the protocol's lack of a verification deadline.
func New(opts ...Option) *Store {
	s := &Store{
		subs:   make(map[string]*model.Subscription),
		logger: slog.Default(),
		stop:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweep()

	return s
}

// Store represents a memory backed store.
type Store struct {
	mu     sync.RWMutex
	subs   map[string]*model.Subscription
	notify func(evt any)
	logger *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// Close stops the background sweep.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// sweep logs subscriptions stuck in the new state for over a sweep period.
func (s *Store) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			s.logOrphans()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) logOrphans() {
	cutoff := time.Now().Add(-sweepInterval)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.State == model.StateNew && sub.CreatedAt.Before(cutoff) {
			s.logger.Warn("subscription never verified by hub",
				"callback", sub.Callback,
				"topic", sub.Topic,
				"age", time.Since(sub.CreatedAt).Round(time.Second))
		}
	}
}

// Add stores a subscription under its callback id.
func (s *Store) Add(sub *model.Subscription) error {
	s.mu.Lock()

	if _, ok := s.subs[sub.Callback]; ok {
		s.mu.Unlock()
		return store.ErrDuplicate
	}

	stored := *sub
	s.subs[sub.Callback] = &stored
	s.mu.Unlock()

	s.emit(store.Added{Subscription: stored})
	return nil
}

// Get retrieves a snapshot of the subscription for the callback id.
func (s *Store) Get(callback string) (*model.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[callback]

	if !ok {
		return nil, store.ErrNotFound
	}

	snapshot := *sub
	return &snapshot, nil
}

// Update applies fn to the stored subscription while holding the store
// lock, so the whole mutation commits as one step.
func (s *Store) Update(callback string, fn func(sub *model.Subscription) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[callback]

	if !ok {
		return store.ErrNotFound
	}

	return fn(sub)
}

// Remove removes the subscription for the callback id.
func (s *Store) Remove(callback string) error {
	s.mu.Lock()

	sub, ok := s.subs[callback]

	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}

	delete(s.subs, callback)
	removed := *sub
	s.mu.Unlock()

	s.emit(store.Removed{Subscription: removed})
	return nil
}

// Each calls fn for every live subscription while holding the store
// lock, so mutations commit as one step like Update.
func (s *Store) Each(fn func(sub *model.Subscription)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		fn(sub)
	}
}

// Len reports the number of live subscriptions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.subs)
}

func (s *Store) emit(evt any) {
	if s.notify != nil {
		s.notify(evt)
	}
}
