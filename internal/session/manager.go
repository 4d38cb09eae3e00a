// Package session owns the login lifecycle: restoring a persisted token at
// startup, logging in through the backend and logging out.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/storm-radar-watch/internal/adapter/api"
	"github.com/couchcryptid/storm-radar-watch/internal/domain"
)

// Backend authenticates against the API.
type Backend interface {
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Register(ctx context.Context, name, email, password string) (domain.Session, error)
	GoogleLogin(ctx context.Context, credential string) (domain.Session, error)
	Me(ctx context.Context, token string) (domain.User, error)
}

// TokenStore persists the bearer token between runs.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// State receives the active session.
type State interface {
	SetSession(*domain.Session)
}

// Manager coordinates backend auth, token persistence and app state.
type Manager struct {
	backend Backend
	tokens  TokenStore
	state   State
	logger  *slog.Logger
}

// NewManager creates a session manager.
func NewManager(backend Backend, tokens TokenStore, state State, logger *slog.Logger) *Manager {
	return &Manager{backend: backend, tokens: tokens, state: state, logger: logger}
}

// Restore installs the persisted session, if any. A token the backend
// rejects is discarded. When the backend is unreachable the token is kept
// and the session installed without user details.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.tokens.Token()
	if err != nil {
		return fmt.Errorf("read persisted token: %w", err)
	}
	if token == "" {
		return nil
	}

	user, err := m.backend.Me(ctx, token)
	switch {
	case errors.Is(err, api.ErrUnauthorized):
		m.logger.Info("persisted session expired")
		if err := m.tokens.ClearToken(); err != nil {
			return fmt.Errorf("clear expired token: %w", err)
		}
		m.state.SetSession(nil)
		return nil
	case err != nil:
		m.logger.Warn("could not validate persisted session", "error", err)
	}

	m.state.SetSession(&domain.Session{Token: token, User: user})
	return nil
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (domain.Session, error) {
	return m.install(m.backend.Login(ctx, email, password))
}

// LoginWithGoogle authenticates with a Google ID token credential.
func (m *Manager) LoginWithGoogle(ctx context.Context, credential string) (domain.Session, error) {
	return m.install(m.backend.GoogleLogin(ctx, credential))
}

// Register creates an account and logs into it.
func (m *Manager) Register(ctx context.Context, name, email, password string) (domain.Session, error) {
	return m.install(m.backend.Register(ctx, name, email, password))
}

// Logout forgets the session locally. The backend keeps no server-side state.
func (m *Manager) Logout(_ context.Context) error {
	m.state.SetSession(nil)
	if err := m.tokens.ClearToken(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

func (m *Manager) install(sess domain.Session, err error) (domain.Session, error) {
	if err != nil {
		return domain.Session{}, err
	}
	if err := m.tokens.SetToken(sess.Token); err != nil {
		m.logger.Warn("persist session token failed; session lasts until restart", "error", err)
	}
	m.state.SetSession(&sess)
	m.logger.Info("logged in", "user_id", sess.User.ID)
	return sess, nil
}
