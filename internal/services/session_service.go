package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hanko-field/storefront/internal/platform/observability"
)

// DefaultLoginLatency is the delay of the simulated authenticator.
const DefaultLoginLatency = time.Second

const (
	defaultFirstName = "John"
	defaultLastName  = "Doe"
)

// SimulatedAuthenticator accepts any credentials after a delay and builds the
// user from the supplied profile or defaults.
type SimulatedAuthenticator struct {
	Latency     time.Duration
	IDGenerator func() string
}

// NewSimulatedAuthenticator returns an authenticator with the given latency and uuid user ids.
func NewSimulatedAuthenticator(latency time.Duration) *SimulatedAuthenticator {
	return &SimulatedAuthenticator{
		Latency:     latency,
		IDGenerator: func() string { return uuid.NewString() },
	}
}

// Authenticate implements Authenticator.
func (a *SimulatedAuthenticator) Authenticate(ctx context.Context, email, _ string, profile *ProfileDetails) (User, error) {
	latency := time.Duration(0)
	newID := uuid.NewString
	if a != nil {
		latency = a.Latency
		if a.IDGenerator != nil {
			newID = a.IDGenerator
		}
	}
	if err := sleepContext(ctx, latency); err != nil {
		return User{}, err
	}

	user := User{
		ID:        newID(),
		Email:     email,
		FirstName: defaultFirstName,
		LastName:  defaultLastName,
	}
	if profile != nil {
		if v := strings.TrimSpace(profile.FirstName); v != "" {
			user.FirstName = v
		}
		if v := strings.TrimSpace(profile.LastName); v != "" {
			user.LastName = v
		}
		user.Phone = strings.TrimSpace(profile.Phone)
	}
	return user, nil
}

// SessionServiceDeps wires the authenticator.
type SessionServiceDeps struct {
	Authenticator Authenticator
	Timeout       time.Duration
	Logger        func(ctx context.Context, event string, fields map[string]any)
	Metrics       *observability.Metrics
}

// SessionService holds the single signed-in shopper slot.
type SessionService struct {
	auth    Authenticator
	timeout time.Duration
	logger  func(ctx context.Context, event string, fields map[string]any)
	metrics *observability.Metrics

	mu   sync.RWMutex
	user *User
}

// NewSessionService constructs a signed-out session.
func NewSessionService(deps SessionServiceDeps) (*SessionService, error) {
	if deps.Authenticator == nil {
		return nil, errors.New("session service: authenticator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SessionService{
		auth:    deps.Authenticator,
		timeout: deps.Timeout,
		logger:  logger,
		metrics: deps.Metrics,
	}, nil
}

// Login authenticates the shopper and fills the session slot. On failure the
// previous session is kept.
func (s *SessionService) Login(ctx context.Context, email, password string, profile *ProfileDetails) (User, error) {
	if s == nil || s.auth == nil {
		return User{}, ErrAuthFailed
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, invalidField("email", "is required")
	}
	if password == "" {
		return User{}, invalidField("password", "is required")
	}

	ctx, span := observability.StartSpan(ctx, "session.login")
	var err error
	defer func() { endSpan(span, err) }()

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	started := time.Now()
	user, authErr := s.auth.Authenticate(callCtx, email, password, profile)
	s.metrics.RecordCollaboratorLatency(ctx, "auth", time.Since(started))
	if authErr != nil {
		switch {
		case errors.Is(authErr, context.DeadlineExceeded), errors.Is(authErr, context.Canceled):
			err = translateCallError("auth", authErr)
		case errors.Is(authErr, ErrAuthFailed):
			err = authErr
		default:
			err = fmt.Errorf("%w: %v", ErrAuthFailed, authErr)
		}
		s.logger(ctx, "session.login_failed", map[string]any{"error": err})
		return User{}, err
	}

	s.mu.Lock()
	stored := user
	s.user = &stored
	s.mu.Unlock()
	s.logger(ctx, "session.login", map[string]any{"userID": user.ID})
	return user, nil
}

// Logout clears the session slot.
func (s *SessionService) Logout() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

// IsAuthenticated reports whether a shopper is signed in.
func (s *SessionService) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

// Current returns the signed-in user.
func (s *SessionService) Current() (User, bool) {
	if s == nil {
		return User{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Require returns the signed-in user or ErrNotAuthenticated.
func (s *SessionService) Require() (User, error) {
	user, ok := s.Current()
	if !ok {
		return User{}, ErrNotAuthenticated
	}
	return user, nil
}

var (
	_ Authenticator = (*SimulatedAuthenticator)(nil)
	_ SessionReader = (*SessionService)(nil)
)
