package closet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"closet-go/internal/model"
)

// EndReason says why a session ended.
type EndReason int

const (
	EndLogout EndReason = iota
	EndExpired
)

func (r EndReason) String() string {
	if r == EndExpired {
		return "expired"
	}
	return "logout"
}

var errNotInitialized = errors.New("session state not initialized")

// SessionState is the single source of truth for who is signed in.
// One instance per process; pass it explicitly to whoever needs it.
// Safe for concurrent use.
type SessionState struct {
	storage SessionStorage
	auth    AuthGateway
	clock   Clock
	logger  Logger

	// opMu serializes Initialize/Login/Signup/Logout/Expire so that
	// persist-then-publish is atomic with respect to each other.
	opMu sync.Mutex

	mu          sync.RWMutex
	current     *model.Session
	initialized bool
	listeners   []func(EndReason)
}

// NewSessionState creates an uninitialized SessionState.
func NewSessionState(storage SessionStorage, auth AuthGateway, clock Clock, logger Logger) *SessionState {
	return &SessionState{
		storage: storage,
		auth:    auth,
		clock:   clock,
		logger:  logger,
	}
}

// Initialize loads any persisted session. A record missing a field, holding a
// token that cannot be decrypted or is not a JWT, or holding an expired JWT is
// discarded and the state stays signed out. May only be called once.
func (s *SessionState) Initialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	already := s.initialized
	s.mu.RUnlock()
	if already {
		return fmt.Errorf("session state already initialized")
	}

	stored, err := s.storage.Load(ctx)
	var reason string
	switch {
	case errors.Is(err, ErrUnreadableSession):
		reason = ErrUnreadableSession.Error()
		s.logger.Warn("persisted session unreadable", "error", err)
	case err != nil:
		return fmt.Errorf("loading persisted session: %w", err)
	case stored != nil:
		reason = discardReason(stored, s.clock.Now())
	}

	var active *model.Session
	if reason == "" {
		active = stored
	} else {
		s.logger.Warn("discarding persisted session", "reason", reason)
		if err := s.storage.Clear(ctx); err != nil {
			return fmt.Errorf("clearing persisted session: %w", err)
		}
	}

	s.mu.Lock()
	s.current = active
	s.initialized = true
	s.mu.Unlock()

	if active != nil {
		s.logger.Debug("session restored", "user_id", active.UserID)
	}
	return nil
}

// Login authenticates and, on success, persists and activates the session.
// On failure the previous state is untouched.
func (s *SessionState) Login(ctx context.Context, creds Credentials) error {
	if err := validateCredentials("login", creds.Email, creds.Password); err != nil {
		return err
	}
	return s.begin(ctx, func() (*AuthResult, error) {
		return s.auth.Login(ctx, creds)
	})
}

// Signup registers a new account and signs in with it.
func (s *SessionState) Signup(ctx context.Context, reg Registration) error {
	if err := validateCredentials("signup", reg.Email, reg.Password); err != nil {
		return err
	}
	return s.begin(ctx, func() (*AuthResult, error) {
		return s.auth.Signup(ctx, reg)
	})
}

func (s *SessionState) begin(ctx context.Context, call func() (*AuthResult, error)) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	initialized, active := s.initialized, s.current != nil
	s.mu.RUnlock()
	if !initialized {
		return errNotInitialized
	}
	if active {
		return ErrSessionActive
	}

	res, err := call()
	if err != nil {
		return err
	}

	sess := &model.Session{
		UserID:    res.UserID,
		Email:     res.Email,
		Token:     res.AccessToken,
		CreatedAt: s.clock.Now(),
	}
	if !sess.Valid() {
		return NewError(KindServer, "auth", "incomplete credentials in response", nil)
	}

	if err := s.storage.Save(ctx, sess); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("signed in", "user_id", sess.UserID, "email", sess.Email)
	return nil
}

// Logout clears the session and notifies listeners.
func (s *SessionState) Logout(ctx context.Context) error {
	return s.end(ctx, EndLogout)
}

// Expire ends the session because the server rejected the credential.
func (s *SessionState) Expire(ctx context.Context) error {
	return s.end(ctx, EndExpired)
}

func (s *SessionState) end(ctx context.Context, reason EndReason) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.storage.Clear(ctx); err != nil {
		return fmt.Errorf("clearing persisted session: %w", err)
	}

	s.mu.Lock()
	was := s.current
	s.current = nil
	listeners := append([]func(EndReason){}, s.listeners...)
	s.mu.Unlock()

	if was == nil {
		return nil
	}

	s.logger.Info("session ended", "user_id", was.UserID, "reason", reason.String())
	for _, fn := range listeners {
		fn(reason)
	}
	return nil
}

// OnEnd registers fn to run after a session ends. Listeners run
// synchronously, outside the state lock, in registration order.
func (s *SessionState) OnEnd(fn func(EndReason)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Current returns a copy of the active session.
func (s *SessionState) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

// Active reports whether someone is signed in.
func (s *SessionState) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Token implements CredentialSource.
func (s *SessionState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

var _ CredentialSource = (*SessionState)(nil)

// checkToken parses token as a JWT without verifying the signature (the
// client never holds the key) and rejects it once exp has passed.
// discardReason says what makes a stored record unusable, or "" when it can
// become the active session.
func discardReason(stored *model.Session, now time.Time) string {
	switch {
	case stored.UserID == "":
		return "record has no user id"
	case stored.Email == "":
		return "record has no email"
	case stored.Token == "":
		return "record has no token"
	}
	if err := checkToken(stored.Token, now); err != nil {
		return err.Error()
	}
	return ""
}

func checkToken(token string, now time.Time) error {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return fmt.Errorf("malformed token: %w", err)
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("malformed token expiry: %w", err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return fmt.Errorf("token expired at %s", exp.Time.UTC().Format(time.RFC3339))
	}
	return nil
}

func validateCredentials(op, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return Validationf(op, "a valid email address is required")
	}
	if password == "" {
		return Validationf(op, "password is required")
	}
	return nil
}
