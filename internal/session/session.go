// Package session holds the admin session context: the bearer token,
// username and role issued at login. It is loaded once at start-up,
// injected into the REST client and cleared on 401 or logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"firmament/internal/events"
)

// RoleAdmin is the role required by admin commands.
const RoleAdmin = "ADMIN"

// ErrNoSession is returned by stores holding no session.
var ErrNoSession = errors.New("no session")

// ErrNotAuthenticated is returned when an operation needs a login.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrForbidden is returned when the session lacks the required role.
var ErrForbidden = errors.New("insufficient role")

// Data is the persisted part of a session.
type Data struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store persists session data between runs.
type Store interface {
	Load(ctx context.Context) (Data, error)
	Save(ctx context.Context, d Data) error
	Delete(ctx context.Context) error
}

// Session is the process-wide session context.
type Session struct {
	mu     sync.RWMutex
	data   Data
	store  Store
	bus    *events.Bus
	logger *zerolog.Logger
	now    func() time.Time
}

// New creates an empty session backed by store. A nil store keeps the
// session in memory only.
func New(store Store, bus *events.Bus, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Session{store: store, bus: bus, logger: logger, now: time.Now}
}

// Load restores a persisted session. An absent or expired token leaves the
// session empty.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	d, err := s.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if exp, ok := ExpiresAt(d.Token); ok && !exp.After(s.now()) {
		s.logger.Info().Str("username", d.Username).Time("expired_at", exp).Msg("stored session expired")
		_ = s.store.Delete(ctx)
		return nil
	}
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	return nil
}

// Begin installs a freshly issued session and persists it.
func (s *Session) Begin(ctx context.Context, d Data) error {
	if d.Token == "" {
		return fmt.Errorf("begin session: empty token")
	}
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, d); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Token
}

// Username returns the logged-in username.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Username
}

// Role returns the logged-in role.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Role
}

// Authenticated reports whether a non-expired token is held.
func (s *Session) Authenticated() bool {
	token := s.Token()
	if token == "" {
		return false
	}
	if exp, ok := ExpiresAt(token); ok && !exp.After(s.now()) {
		return false
	}
	return true
}

// Require returns nil when the session is authenticated with role. An
// empty role only checks authentication.
func (s *Session) Require(role string) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	if role != "" && s.Role() != role {
		return ErrForbidden
	}
	return nil
}

// Clear drops the session in memory and in the store.
func (s *Session) Clear() {
	s.mu.Lock()
	had := s.data.Token != ""
	s.data = Data{}
	s.mu.Unlock()

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Delete(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete stored session")
		}
	}
	if had {
		s.bus.Publish(events.Event{Type: events.TypeSessionCleared})
	}
}

// ExpiresAt reads the exp claim of a JWT without verifying its signature.
// Verification belongs to the server; the client only avoids sending
// tokens it knows are stale.
func ExpiresAt(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
