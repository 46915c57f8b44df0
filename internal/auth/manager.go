// Package auth owns per-account authentication state. Every login
// attempt against the platform risks tripping a security challenge, so
// the manager reuses persisted tokens whenever a cheap probe says they
// are still good, and serializes attempts per account.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/replygram/replygram/internal/models"
	"github.com/replygram/replygram/internal/platform"
	"github.com/replygram/replygram/internal/storage"
)

type Manager struct {
	client   platform.Client
	accounts storage.AccountStore
	sessions storage.SessionStore
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(client platform.Client, accounts storage.AccountStore, sessions storage.SessionStore, logger *zap.Logger) *Manager {
	return &Manager{
		client:   client,
		accounts: accounts,
		sessions: sessions,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing authentication for one
// account. Locks are never removed; the map is bounded by the number
// of configured accounts.
func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, exists := m.locks[accountID]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}
	return lock
}

// AcquireSession returns a usable token for the account. A persisted
// token is probed first; only when the probe fails does the manager
// spend a credential login, persisting the fresh token before
// returning. Concurrent calls for the same account queue behind one
// in-flight attempt; a queued caller probes the token the first
// caller just persisted instead of logging in again.
//
// The error return is for storage problems and unknown accounts; every
// authentication result, including failures, comes back as an Outcome.
func (m *Manager) AcquireSession(ctx context.Context, accountID string) (Outcome, error) {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	account, err := m.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading account %q: %w", accountID, err)
	}

	if session, err := m.sessions.GetSession(ctx, accountID); err != nil {
		return Outcome{}, fmt.Errorf("loading session for %q: %w", accountID, err)
	} else if session != nil {
		valid, err := m.client.ProbeSession(ctx, session.Token)
		if err != nil {
			m.logger.Warn("session probe failed",
				zap.Error(err),
				zap.String("account", accountID))
			return Outcome{Status: StatusTransportError, Err: err}, nil
		}
		if valid {
			return Outcome{Status: StatusOK, Token: session.Token}, nil
		}
		m.logger.Info("persisted session no longer valid, falling back to login",
			zap.String("account", accountID))
	}

	return m.login(ctx, account)
}

func (m *Manager) login(ctx context.Context, account *models.Account) (Outcome, error) {
	token, err := m.client.Login(ctx, account.Username, account.Password)
	if err != nil {
		outcome := classifyLoginError(err)
		m.logger.Warn("login failed",
			zap.Error(err),
			zap.String("account", account.Username),
			zap.String("status", outcome.Status.String()))
		return outcome, nil
	}

	session := &models.Session{AccountID: account.Username, Token: token}
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		return Outcome{}, fmt.Errorf("persisting session for %q: %w", account.Username, err)
	}

	m.logger.Info("login succeeded, session persisted",
		zap.String("account", account.Username))
	return Outcome{Status: StatusOK, Token: token}, nil
}

func classifyLoginError(err error) Outcome {
	switch {
	case errors.Is(err, platform.ErrInvalidCredentials):
		return Outcome{Status: StatusInvalidCredentials, Err: err}
	case errors.Is(err, platform.ErrChallengeRequired):
		return Outcome{Status: StatusChallengeRequired, Err: err}
	case errors.Is(err, platform.ErrTwoFactorRequired):
		return Outcome{Status: StatusTwoFactorRequired, Err: err}
	default:
		return Outcome{Status: StatusTransportError, Err: err}
	}
}

// Invalidate drops the persisted session for an account, forcing the
// next acquisition through a credential login.
func (m *Manager) Invalidate(ctx context.Context, accountID string) error {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	return m.sessions.DeleteSession(ctx, accountID)
}
