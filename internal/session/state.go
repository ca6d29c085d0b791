package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/abilimap/client-core-go/internal/auth/entity"
)

// ErrFeedLost reports that the identity event feed terminated unexpectedly.
// The state falls back to logged out; observers receive it as a distinguished
// degraded-mode event, not a crash.
var ErrFeedLost = errors.New("session: identity feed lost")

// Snapshot is an immutable point-in-time view of the current user, safe to
// read without synchronization. The zero value is the logged-out snapshot.
type Snapshot struct {
	UserID   string
	UserName string
	// LoggedIn is true only for a verified identity; an unverified account
	// has a UserID but is not considered logged in.
	LoggedIn bool
}

// Observer receives every new snapshot in feed order. err is non-nil only
// for the degraded-mode notification (ErrFeedLost). Deliveries to one
// observer are never concurrent.
type Observer func(snap Snapshot, err error)

// State mirrors the identity provider's event feed into an observable
// snapshot. It is the single source of truth for "who is using the app":
// one writer (the Run loop), many readers.
type State struct {
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	current   Snapshot
	degraded  bool
	observers []Observer
}

func NewState(logger *zap.SugaredLogger) *State {
	return &State{logger: logger}
}

// Current returns the latest snapshot. Never blocks; before any feed event
// arrives it returns the logged-out snapshot.
func (s *State) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Degraded reports whether the feed has been lost.
func (s *State) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Subscribe registers an observer for subsequent snapshot changes.
func (s *State) Subscribe(fn Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Run consumes the identity feed until the feed closes or ctx is cancelled.
// It is the only writer of the snapshot, so observer deliveries are
// serialized and preserve feed order. A closed feed degrades the state to
// logged out; ctx cancellation is an orderly shutdown and does not.
func (s *State) Run(ctx context.Context, feed <-chan *entity.Identity) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-feed:
			if !ok {
				s.degrade()
				return
			}
			s.apply(transition(id))
		}
	}
}

// transition is the pure mapping from a feed event to a snapshot.
func transition(id *entity.Identity) Snapshot {
	if id == nil {
		return Snapshot{}
	}
	name := ""
	switch {
	case id.DisplayName != nil && *id.DisplayName != "":
		name = *id.DisplayName
	case id.Email != nil:
		name = *id.Email
	}
	return Snapshot{UserID: id.ID, UserName: name, LoggedIn: id.EmailVerified}
}

func (s *State) apply(snap Snapshot) {
	s.mu.Lock()
	s.current = snap
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range obs {
		fn(snap, nil)
	}
}

func (s *State) degrade() {
	s.mu.Lock()
	s.current = Snapshot{}
	s.degraded = true
	obs := append([]Observer(nil), s.observers...)
	s.mu.Unlock()
	if s.logger != nil {
		s.logger.Warn("identity feed lost; session degraded to logged out")
	}
	for _, fn := range obs {
		fn(Snapshot{}, ErrFeedLost)
	}
}
