// Package session tracks app foreground/background transitions and reports
// session start and end events to the backend.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the tracker's view of the app.
type State int

const (
	Inactive State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "inactive"
}

// Client is the subset of the backend transport the tracker needs.
type Client interface {
	StartSession(ctx context.Context, userID string, at time.Time) (string, error)
	EndSession(ctx context.Context, userID, sessionID string, at time.Time) error
}

// AppStateSource delivers app lifecycle events.
type AppStateSource interface {
	Subscribe(onForeground, onBackground func()) (unsubscribe func())
}

const defaultEventTimeout = 15 * time.Second

// Tracker is a two-state machine, one per SDK instance.
// Backend failures are logged and never returned: session tracking must not
// interfere with notification scheduling.
type Tracker struct {
	client  Client
	userID  func() string
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration

	mu          sync.Mutex
	state       State
	sessionID   string
	sessionUser string
	unsubscribe func()
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithEventTimeout bounds the backend calls made from app-state callbacks.
func WithEventTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// New creates a Tracker. userID is consulted on every transition and returns
// "" while the user is unknown.
// It panics if client or userID is nil. If logger is nil, it defaults to slog.Default().
func New(client Client, userID func() string, logger *slog.Logger, opts ...Option) *Tracker {
	if client == nil {
		panic("session: client cannot be nil")
	}
	if userID == nil {
		panic("session: user id provider cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		client:  client,
		userID:  userID,
		logger:  logger,
		now:     time.Now,
		timeout: defaultEventTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start subscribes to src and treats the app as foregrounded.
func (t *Tracker) Start(ctx context.Context, src AppStateSource) {
	if src != nil {
		unsubscribe := src.Subscribe(t.onForeground, t.onBackground)

		t.mu.Lock()
		t.unsubscribe = unsubscribe
		t.mu.Unlock()
	}

	t.Foreground(ctx)
}

func (t *Tracker) onForeground() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	t.Foreground(ctx)
}

func (t *Tracker) onBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	t.Background(ctx)
}

// Foreground moves to Active and opens a session when a user is known and
// none is open.
func (t *Tracker) Foreground(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = Active
	t.startLocked(ctx)
}

// Background moves to Inactive and closes the open session, if any.
func (t *Tracker) Background(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = Inactive
	t.endLocked(ctx)
}

// Identify reacts to a change of user id while the app is Active: a session
// opened under another user is ended, then one is opened for the current
// user.
func (t *Tracker) Identify(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Active {
		return
	}
	if t.sessionID != "" && t.sessionUser != t.userID() {
		t.endLocked(ctx)
	}
	t.startLocked(ctx)
}

// Close unsubscribes from app-state events and force-ends the open session.
func (t *Tracker) Close(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}

	t.state = Inactive
	t.endLocked(ctx)
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SessionID returns the open session id, "" when none.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *Tracker) startLocked(ctx context.Context) {
	if t.sessionID != "" {
		return
	}

	userID := t.userID()
	if userID == "" {
		t.logger.Debug("session start skipped: no user id")
		return
	}

	id, err := t.client.StartSession(ctx, userID, t.now())
	if err != nil {
		t.logger.Warn("failed to start session", "user_id", userID, "error", err)
		return
	}

	t.sessionID = id
	t.sessionUser = userID
	t.logger.Debug("session started", "user_id", userID, "session_id", id)
}

func (t *Tracker) endLocked(ctx context.Context) {
	if t.sessionID == "" {
		return
	}

	// Cleared before the call: a failed end is not retried.
	id, userID := t.sessionID, t.sessionUser
	t.sessionID, t.sessionUser = "", ""

	if err := t.client.EndSession(ctx, userID, id, t.now()); err != nil {
		t.logger.Warn("failed to end session", "user_id", userID, "session_id", id, "error", err)
		return
	}
	t.logger.Debug("session ended", "user_id", userID, "session_id", id)
}
