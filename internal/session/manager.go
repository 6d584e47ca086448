// Package session owns the signed-in identity: the access token, the user it
// belongs to and the persisted copy that survives restarts.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/domain"
	domainerrors "github.com/docshelf/docshelf/internal/errors"
	"github.com/docshelf/docshelf/internal/validation"
)

// Fallback messages when the server gives no detail.
const (
	MsgLoginFailed        = "Login failed"
	MsgRegistrationFailed = "Registration failed"
	MsgUnreachable        = "Unable to reach the server. Please check your connection."
	MsgLoginInterrupted   = "Logged out while signing in"
	MsgSessionExpired     = "Your session has expired. Run 'docshelf login' again."
	MsgSessionRejected    = "The server no longer accepts your session. Run 'docshelf login' again."
)

// Status is the session state.
type Status int

// Session states.
const (
	StatusUnauthenticated Status = iota
	StatusChecking
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "checking"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// AuthAPI is the server side of the session.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*oauth2.Token, error)
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	Me(ctx context.Context, token *oauth2.Token) (*domain.User, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager is the only writer of the session and its persisted token. All
// methods are safe for concurrent use.
type Manager struct {
	api       AuthAPI
	store     TokenStore
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	token  *oauth2.Token
	user   *domain.User
	status Status
	ended  error
	// gen is bumped whenever the session is discarded. A profile fetch only
	// applies its result if gen is unchanged when it returns.
	gen uint64
}

var _ api.Authorizer = (*Manager)(nil)

// NewManager creates an unauthenticated session.
func NewManager(authAPI AuthAPI, store TokenStore, validator *validation.Validator, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		api:       authAPI,
		store:     store,
		validator: validator,
		logger:    logger.With("component", "session"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores a persisted session. A stored token is checked against
// the server and discarded on any failure; the outcome is visible through
// Status, and Ended tells why a stored session was dropped.
func (m *Manager) Initialize(ctx context.Context) {
	gen := m.generation()
	tok, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to read stored token", "error", err)
		m.discard()
		return
	}
	if tok == nil {
		m.set(nil, nil, StatusUnauthenticated)
		return
	}

	if tok.Expiry.IsZero() {
		tok.Expiry = tokenExpiry(tok.AccessToken)
	}
	if m.expired(tok) {
		m.logger.Debug("stored token expired", "expiry", tok.Expiry)
		m.discard()
		m.end(domainerrors.TokenExpired(MsgSessionExpired))
		return
	}

	if !m.begin(gen, tok, false) {
		return
	}
	user, err := m.api.Me(ctx, tok)
	if err != nil {
		m.logger.Debug("stored token rejected", "error", err)
		if m.abandon(gen) {
			m.end(sessionError(err))
		}
		return
	}
	if !m.commit(gen, tok, user) {
		m.logger.Debug("session restore superseded by logout")
		return
	}
	m.logger.Debug("session restored", "username", user.Username)
}

// Login exchanges credentials for a token, persists it and loads the
// profile. If the profile fetch fails the new token is dropped again, and a
// Logout during the fetch wins over the login.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	gen := m.generation()
	tok, err := m.api.Login(ctx, username, password)
	if err != nil {
		return authError(err, MsgLoginFailed)
	}
	tok.Expiry = tokenExpiry(tok.AccessToken)

	if !m.begin(gen, tok, true) {
		return domainerrors.AuthFailed(MsgLoginInterrupted)
	}

	user, err := m.api.Me(ctx, tok)
	if err != nil {
		m.abandon(gen)
		msg := api.DetailOf(err)
		if msg == "" {
			msg = MsgLoginFailed
		}
		return domainerrors.Wrap(err, domainerrors.CodeAuthFailed, msg)
	}
	if !m.commit(gen, tok, user) {
		return domainerrors.AuthFailed(MsgLoginInterrupted)
	}

	m.logger.Info("logged in", "username", user.Username)
	return nil
}

// Register creates an account without signing in.
func (m *Manager) Register(ctx context.Context, req domain.RegisterRequest) error {
	if err := m.validator.Validate(req); err != nil {
		return err
	}
	if _, err := m.api.Register(ctx, req); err != nil {
		return authError(err, MsgRegistrationFailed)
	}
	m.logger.Info("registered", "username", req.Username)
	return nil
}

// Logout forgets the token and user. It never fails, and a login or
// restore still waiting for the server will not bring the session back.
func (m *Manager) Logout() {
	m.discard()
}

// Ended reports why the stored session was dropped by Initialize: an
// expired token or one the server refused. It is nil otherwise.
func (m *Manager) Ended() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ended
}

// AuthorizationHeader returns "Bearer <token>" while a token is held.
func (m *Manager) AuthorizationHeader() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return "", false
	}
	return m.token.Type() + " " + m.token.AccessToken, true
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (m *Manager) CurrentUser() *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// TokenExpiry returns when the current token expires, if known.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil || m.token.Expiry.IsZero() {
		return time.Time{}, false
	}
	return m.token.Expiry, true
}

func (m *Manager) set(tok *oauth2.Token, user *domain.User, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.user, m.status = tok, user, status
}

func (m *Manager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// begin holds tok while its profile is fetched, persisting it first when
// asked. It reports false when the session was discarded since gen was read.
func (m *Manager) begin(gen uint64, tok *oauth2.Token, persist bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	if persist {
		if err := m.store.Save(tok); err != nil {
			m.logger.Warn("failed to persist token", "error", err)
		}
	}
	m.token, m.user, m.status = tok, nil, StatusChecking
	m.ended = nil
	return true
}

// commit completes the session started at gen. It reports false when the
// session was discarded in the meantime.
func (m *Manager) commit(gen uint64, tok *oauth2.Token, user *domain.User) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.token, m.user, m.status = tok, user, StatusAuthenticated
	return true
}

// abandon discards the session started at gen unless something else already
// did.
func (m *Manager) abandon(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.discardLocked()
	return true
}

func (m *Manager) end(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = err
}

func (m *Manager) discard() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discardLocked()
}

// discardLocked clears memory and the store together so a concurrent begin
// never sees one without the other.
func (m *Manager) discardLocked() {
	m.token, m.user, m.status = nil, nil, StatusUnauthenticated
	m.ended = nil
	m.gen++
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear stored token", "error", err)
	}
}

func (m *Manager) expired(tok *oauth2.Token) bool {
	return !tok.Expiry.IsZero() && !m.now().Before(tok.Expiry)
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Opaque
// tokens have no known expiry.
func tokenExpiry(raw string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// authError turns a failed login or registration call into a user-facing
// error carrying the server detail or fallback.
func authError(err error, fallback string) error {
	status := api.StatusOf(err)
	if status == 0 {
		return domainerrors.Network(MsgUnreachable).WithCause(err)
	}

	msg := api.DetailOf(err)
	if msg == "" {
		msg = fallback
	}

	switch status {
	case http.StatusUnauthorized:
		return domainerrors.InvalidCredentials(msg).WithCause(err)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.Validation(msg).WithCause(err)
	default:
		return domainerrors.AuthFailed(msg).WithCause(err)
	}
}

// sessionError explains why a stored token could not be restored.
func sessionError(err error) error {
	switch status := api.StatusOf(err); {
	case status == 0:
		return domainerrors.Network(MsgUnreachable).WithCause(err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domainerrors.Unauthorized(MsgSessionRejected).WithCause(err)
	default:
		return domainerrors.Wrapf(err, domainerrors.CodeInternal,
			"Could not check your session (server answered %d). Run 'docshelf login' again.", status)
	}
}
