// Package session holds the signed-in user and drives the login, register
// and logout lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledgerbook/internal/core"
	"ledgerbook/internal/credentials"
	"ledgerbook/internal/log"
	"ledgerbook/internal/ports"
)

// ErrNoSession is returned by Restore when no access token is stored.
var ErrNoSession = errors.New("not signed in")

// State is a point-in-time copy of the store.
type State struct {
	CurrentUser   *core.User
	Status        core.Status
	Error         string
	ProfileStatus core.Status
}

// Store is safe for concurrent use.
type Store struct {
	auth   ports.AuthGateway
	creds  *credentials.Manager
	logger *log.Logger

	mu    sync.RWMutex
	state State
}

func New(auth ports.AuthGateway, creds *credentials.Manager, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		auth:   auth,
		creds:  creds,
		logger: logger.WithComponent(log.ComponentSession),
		state:  State{Status: core.StatusIdle, ProfileStatus: core.StatusIdle},
	}
}

// Login authenticates, persists the token pair, then fetches the profile.
// A failed profile fetch only shows in ProfileStatus.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.begin()

	res, err := s.auth.Login(ctx, email, password)
	if err == nil {
		err = s.creds.Set(ctx, res.Tokens)
	}
	if err != nil {
		s.fail(err)
		s.logger.InfoContext(ctx, "login failed", log.FieldOperation, log.OpLogin, log.FieldError, err.Error())
		return err
	}

	s.mu.Lock()
	s.state.Status = core.StatusSucceeded
	s.state.Error = ""
	if res.User != nil {
		u := *res.User
		s.state.CurrentUser = &u
	}
	s.mu.Unlock()

	if err := s.FetchProfile(ctx); err != nil {
		s.logger.WarnContext(ctx, "profile fetch after login failed", log.FieldError, err.Error())
	}
	return nil
}

// Register validates r locally and, if valid, creates the account. The new
// user becomes the current user; no tokens are issued.
func (s *Store) Register(ctx context.Context, r core.Registration) (core.User, error) {
	if err := r.Validate(); err != nil {
		return core.User{}, err
	}

	s.begin()
	u, err := s.auth.Register(ctx, r)
	if err != nil {
		s.fail(err)
		s.logger.InfoContext(ctx, "register failed", log.FieldOperation, log.OpRegister, log.FieldError, err.Error())
		return core.User{}, err
	}

	s.mu.Lock()
	s.state.Status = core.StatusSucceeded
	s.state.Error = ""
	s.state.CurrentUser = &u
	s.mu.Unlock()
	return u, nil
}

// Logout tells the server, ignoring any failure, then drops the local
// session.
func (s *Store) Logout(ctx context.Context) {
	if err := s.auth.Logout(ctx); err != nil {
		s.logger.WarnContext(ctx, "logout error", log.FieldOperation, log.OpLogout, log.FieldError, err.Error())
	}
	if err := s.creds.Clear(ctx); err != nil {
		s.logger.ErrorContext(ctx, "clear credentials", log.FieldError, err.Error())
	}

	s.mu.Lock()
	s.state = State{Status: core.StatusIdle, ProfileStatus: core.StatusIdle}
	s.mu.Unlock()
}

// ClearError resets the error without touching the status.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
}

// FetchProfile replaces the current user with the server's profile.
func (s *Store) FetchProfile(ctx context.Context) error {
	s.mu.Lock()
	s.state.ProfileStatus = core.StatusLoading
	s.mu.Unlock()

	u, err := s.auth.Profile(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.ProfileStatus = core.StatusFailed
		s.logger.DebugContext(ctx, "profile fetch failed", log.FieldOperation, log.OpProfile, log.FieldError, err.Error())
		return err
	}
	s.state.ProfileStatus = core.StatusSucceeded
	s.state.CurrentUser = &u
	return nil
}

// Restore re-establishes the session from stored tokens.
func (s *Store) Restore(ctx context.Context) error {
	if !s.creds.HasSession(ctx) {
		return ErrNoSession
	}
	if err := s.FetchProfile(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	s.mu.Lock()
	s.state.Status = core.StatusSucceeded
	s.mu.Unlock()
	return nil
}

// Authenticated reports whether a user is signed in and still holds an
// access token.
func (s *Store) Authenticated(ctx context.Context) bool {
	s.mu.RLock()
	signedIn := s.state.CurrentUser != nil
	s.mu.RUnlock()
	return signedIn && s.creds.HasSession(ctx)
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Store) CurrentUser() *core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.CurrentUser == nil {
		return nil
	}
	u := *s.state.CurrentUser
	return &u
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.CurrentUser != nil {
		u := *st.CurrentUser
		st.CurrentUser = &u
	}
	return st
}

func (s *Store) begin() {
	s.mu.Lock()
	s.state.Status = core.StatusLoading
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.state.Status = core.StatusFailed
	s.state.Error = err.Error()
	s.mu.Unlock()
}
