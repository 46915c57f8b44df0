package storage

import (
	"context"
	"sync"
	"time"

	"github.com/replygram/replygram/internal/models"
)

type processedKey struct {
	accountID string
	commentID string
}

type MemoryStorage struct {
	mu        sync.RWMutex
	nextRule  int64
	rules     []models.Rule
	processed map[processedKey]*models.ProcessedComment
	sessions  map[string]*models.Session
	accounts  map[string]*models.Account
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nextRule:  1,
		processed: make(map[processedKey]*models.ProcessedComment),
		sessions:  make(map[string]*models.Session),
		accounts:  make(map[string]*models.Account),
	}
}

// Rule methods
func (s *MemoryStorage) AddRule(ctx context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule.ID = s.nextRule
	s.nextRule++
	s.rules = append(s.rules, *rule)
	return nil
}

func (s *MemoryStorage) ListRules(ctx context.Context, accountID, mediaID string) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Rule
	for _, r := range s.rules {
		if accountID != "" && r.AccountID != accountID {
			continue
		}
		if mediaID != "" && r.MediaID != mediaID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Processed-comment methods
func (s *MemoryStorage) IsProcessed(ctx context.Context, accountID, commentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.processed[processedKey{accountID, commentID}]
	return exists, nil
}

func (s *MemoryStorage) MarkProcessed(ctx context.Context, accountID, commentID, mediaID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := processedKey{accountID, commentID}
	if _, exists := s.processed[key]; exists {
		return false, nil
	}
	s.processed[key] = &models.ProcessedComment{
		AccountID:   accountID,
		CommentID:   commentID,
		MediaID:     mediaID,
		ProcessedAt: time.Now(),
	}
	return true, nil
}

// Session methods
func (s *MemoryStorage) GetSession(ctx context.Context, accountID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[accountID]
	if !exists {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemoryStorage) SaveSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	copied.UpdatedAt = time.Now()
	s.sessions[session.AccountID] = &copied
	return nil
}

func (s *MemoryStorage) DeleteSession(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, accountID)
	return nil
}

// Account methods
func (s *MemoryStorage) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[username]
	if !exists {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *MemoryStorage) UpsertAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *account
	s.accounts[account.Username] = &copied
	return nil
}

func (s *MemoryStorage) ListAccounts(ctx context.Context) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (s *MemoryStorage) Close() error {
	return nil
}
