package auth

import (
	"context"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

// State is the authentication state of the storefront session.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
)

// Session is the current session descriptor. Identity is the stable key for
// the logged-in user (the token subject) and is empty while anonymous.
type Session struct {
	State    State
	Identity string
}

func (s Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// Tracker holds the session state and notifies subscribers on transitions.
// It is the explicit replacement for the ambient auth singleton of the
// browser original: anything that cares about login observes the tracker.
type Tracker struct {
	logg *logger.Logger

	mu      sync.Mutex
	current Session
	subs    map[int]func(prev, next Session)
	nextSub int
}

// NewTracker starts in the anonymous state.
func NewTracker(logg *logger.Logger) (*Tracker, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &Tracker{
		logg: logg,
		subs: map[int]func(prev, next Session){},
	}, nil
}

// Current returns the session descriptor.
func (t *Tracker) Current() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// IsAuthenticated reports whether a user is logged in.
func (t *Tracker) IsAuthenticated() bool {
	return t.Current().IsAuthenticated()
}

// Subscribe registers a transition callback and returns its cancel func.
// Callbacks fire synchronously, outside the tracker lock, once per state
// change.
func (t *Tracker) Subscribe(fn func(prev, next Session)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// SetAuthenticated transitions to the authenticated state for the identity.
func (t *Tracker) SetAuthenticated(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session identity is required")
	}
	t.set(ctx, Session{State: StateAuthenticated, Identity: identity})
	return nil
}

// SetAuthenticatedFromToken derives the identity from a session token.
func (t *Tracker) SetAuthenticatedFromToken(ctx context.Context, token string) error {
	identity, err := IdentityFromToken(token)
	if err != nil {
		return err
	}
	return t.SetAuthenticated(ctx, identity)
}

// SetAnonymous transitions back to the anonymous state (logout).
func (t *Tracker) SetAnonymous(ctx context.Context) {
	t.set(ctx, Session{State: StateAnonymous})
}

func (t *Tracker) set(ctx context.Context, next Session) {
	t.mu.Lock()
	prev := t.current
	if prev == next {
		t.mu.Unlock()
		return
	}
	t.current = next
	subs := make([]func(prev, next Session), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	t.logg.Info(t.logg.WithField(ctx, "authenticated", next.IsAuthenticated()), "session state changed")
	for _, fn := range subs {
		fn(prev, next)
	}
}

// IdentityFromToken reads the subject claim from a session token. The
// client never holds the signing key, so the claims are decoded without
// verification; the backend is the only party that trusts the token.
func IdentityFromToken(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "decode session token")
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "session token has no subject")
	}
	return subject, nil
}
