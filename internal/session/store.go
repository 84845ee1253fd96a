// Package session tracks the authenticated identity for the running
// process. The store is the single source of truth for "who is logged
// in" and therefore for which task list is visible.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"punchlist/internal/service"
)

// Store holds the current session and forwards external session
// changes to a registered consumer.
type Store struct {
	svc service.Service
	log *slog.Logger

	mu       sync.Mutex
	identity *service.Identity
	lastErr  string
	notify   func(*service.Identity)

	sub service.Subscription
}

// New creates a Store and subscribes to the gateway's session-change
// notifications. Call Close to release the subscription.
func New(svc service.Service, log *slog.Logger) *Store {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{svc: svc, log: log}
	s.sub = svc.OnSessionChange(s.handleChange)
	return s
}

// handleChange absorbs a session change made outside this process,
// e.g. another punchlist process signing in or out.
func (s *Store) handleChange(id *service.Identity) {
	s.mu.Lock()
	s.identity = id
	fn := s.notify
	s.mu.Unlock()

	s.log.Debug("external session change", "signed_in", id != nil)
	if fn != nil {
		fn(id)
	}
}

// Notify registers the consumer called on external session changes.
// The TUI injects the change into its event loop here.
func (s *Store) Notify(fn func(*service.Identity)) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// Identity returns the current session identity, or nil when signed
// out.
func (s *Store) Identity() *service.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Err returns the last user-visible auth error, or "".
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Initialize restores an existing session at startup. A lookup failure
// is logged and treated as signed out, never surfaced as fatal.
func (s *Store) Initialize(ctx context.Context) {
	id, err := s.svc.CurrentUser(ctx)
	if err != nil {
		s.log.Warn("session restore failed", "err", err)
		id = nil
	}

	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
}

// SignUp registers a new account. A nil identity with a nil error
// means the account awaits confirmation; no session is live yet. On
// failure the session is unchanged and Err carries the message.
func (s *Store) SignUp(ctx context.Context, email, password string) (*service.Identity, error) {
	id, err := s.svc.SignUp(ctx, email, password)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
		return nil, err
	}
	s.lastErr = ""
	s.identity = id
	return id, nil
}

// SignIn authenticates with email and password. On failure the session
// is unchanged and Err carries the message.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	id, err := s.svc.SignIn(ctx, email, password)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastErr = err.Error()
		return err
	}
	s.lastErr = ""
	s.identity = &id
	return nil
}

// SignOut clears the session locally whether or not the remote call
// succeeds; a stale identity must never outlive the user's intent.
func (s *Store) SignOut(ctx context.Context) {
	err := s.svc.SignOut(ctx)

	s.mu.Lock()
	s.identity = nil
	s.lastErr = ""
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("remote sign-out failed", "err", err)
	}
}

// Close releases the session-change subscription.
func (s *Store) Close() {
	s.sub.Cancel()
}
