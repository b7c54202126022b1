// Package credentials owns the process-wide access/refresh token pair and
// the single refresh-in-flight flag shared by every request.
package credentials

import (
	"context"
	"fmt"
	"sync/atomic"

	"ledgerbook/internal/core"
	"ledgerbook/internal/storage"
)

// Manager routes every token read and write through one KV. It is safe for
// concurrent use; concurrent writers follow last-writer-wins.
type Manager struct {
	kv         storage.KV
	refreshing atomic.Bool
}

func NewManager(kv storage.KV) *Manager {
	return &Manager{kv: kv}
}

// AccessToken returns the stored access token, or "" when none is stored.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	v, _, err := m.kv.Get(ctx, storage.KeyAccessToken)
	return v, err
}

// RefreshToken returns the stored refresh token, or "" when none is stored.
func (m *Manager) RefreshToken(ctx context.Context) (string, error) {
	v, _, err := m.kv.Get(ctx, storage.KeyRefreshToken)
	return v, err
}

// Tokens returns both stored tokens.
func (m *Manager) Tokens(ctx context.Context) (core.Tokens, error) {
	access, err := m.AccessToken(ctx)
	if err != nil {
		return core.Tokens{}, err
	}
	refresh, err := m.RefreshToken(ctx)
	if err != nil {
		return core.Tokens{}, err
	}
	return core.Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// HasSession reports whether an access token is stored.
func (m *Manager) HasSession(ctx context.Context) bool {
	v, err := m.AccessToken(ctx)
	return err == nil && v != ""
}

// Set persists a token pair. An empty refresh token leaves the stored one
// in place.
func (m *Manager) Set(ctx context.Context, t core.Tokens) error {
	if err := m.kv.Set(ctx, storage.KeyAccessToken, t.AccessToken); err != nil {
		return fmt.Errorf("store access token: %w", err)
	}
	if t.RefreshToken == "" {
		return nil
	}
	if err := m.kv.Set(ctx, storage.KeyRefreshToken, t.RefreshToken); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Clear removes both tokens.
func (m *Manager) Clear(ctx context.Context) error {
	errA := m.kv.Remove(ctx, storage.KeyAccessToken)
	errR := m.kv.Remove(ctx, storage.KeyRefreshToken)
	if errA != nil {
		return fmt.Errorf("clear access token: %w", errA)
	}
	if errR != nil {
		return fmt.Errorf("clear refresh token: %w", errR)
	}
	return nil
}

// TryBeginRefresh claims the refresh flag. It returns false when another
// refresh already holds it.
func (m *Manager) TryBeginRefresh() bool {
	return m.refreshing.CompareAndSwap(false, true)
}

// EndRefresh releases the refresh flag.
func (m *Manager) EndRefresh() {
	m.refreshing.Store(false)
}

// Refreshing reports whether a refresh is in flight.
func (m *Manager) Refreshing() bool {
	return m.refreshing.Load()
}
