package storage

import (
	"context"
	"errors"

	"github.com/replygram/replygram/internal/models"
)

// ErrAccountNotFound is returned by GetAccount for unknown usernames.
var ErrAccountNotFound = errors.New("storage: account not found")

type RuleStore interface {
	// AddRule persists a rule and fills in its ID.
	AddRule(ctx context.Context, rule *models.Rule) error
	// ListRules returns rules in insertion order. Empty accountID or
	// mediaID means no filter on that field.
	ListRules(ctx context.Context, accountID, mediaID string) ([]models.Rule, error)
}

type ProcessedStore interface {
	IsProcessed(ctx context.Context, accountID, commentID string) (bool, error)
	// MarkProcessed records a comment as handled. The insert is atomic
	// at the storage layer; it returns true only for the call that
	// actually created the record, false for duplicates.
	MarkProcessed(ctx context.Context, accountID, commentID, mediaID string) (bool, error)
}

type SessionStore interface {
	// GetSession returns the persisted session for an account, or nil
	// when none exists.
	GetSession(ctx context.Context, accountID string) (*models.Session, error)
	// SaveSession atomically replaces any prior session for the account.
	SaveSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, accountID string) error
}

type AccountStore interface {
	GetAccount(ctx context.Context, username string) (*models.Account, error)
	UpsertAccount(ctx context.Context, account *models.Account) error
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

type Storage interface {
	RuleStore
	ProcessedStore
	SessionStore
	AccountStore
	Close() error
}
