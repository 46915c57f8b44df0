package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/replygram/replygram/internal/models"
	"go.uber.org/zap"
)

// SQLiteStorage is the default single-file backend. Patterns are stored
// as a JSON array in a TEXT column.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &SQLiteStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		use_proxy INTEGER NOT NULL DEFAULT 0,
		proxy TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS sessions (
		account_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		patterns TEXT NOT NULL,
		reply_text TEXT NOT NULL DEFAULT '',
		direct_text TEXT NOT NULL DEFAULT '',
		cooldown_seconds INTEGER NOT NULL DEFAULT 3600
	);
	CREATE INDEX IF NOT EXISTS idx_rules_scope ON rules (account_id, media_id);
	CREATE TABLE IF NOT EXISTS processed_comments (
		account_id TEXT NOT NULL,
		comment_id TEXT NOT NULL,
		media_id TEXT NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (account_id, comment_id)
	);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) AddRule(ctx context.Context, rule *models.Rule) error {
	patterns, err := json.Marshal(rule.Patterns)
	if err != nil {
		return fmt.Errorf("error encoding patterns: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (account_id, media_id, patterns, reply_text, direct_text, cooldown_seconds)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rule.AccountID, rule.MediaID, string(patterns), rule.ReplyText, rule.DirectText, rule.CooldownSeconds)
	if err != nil {
		return fmt.Errorf("error creating rule: %w", err)
	}

	rule.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error getting rule id: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListRules(ctx context.Context, accountID, mediaID string) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, media_id, patterns, reply_text, direct_text, cooldown_seconds
		 FROM rules
		 WHERE (? = '' OR account_id = ?)
		   AND (? = '' OR media_id = ?)
		 ORDER BY id`,
		accountID, accountID, mediaID, mediaID)
	if err != nil {
		return nil, fmt.Errorf("error querying rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var rule models.Rule
		var patterns string
		err := rows.Scan(
			&rule.ID,
			&rule.AccountID,
			&rule.MediaID,
			&patterns,
			&rule.ReplyText,
			&rule.DirectText,
			&rule.CooldownSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning rule: %w", err)
		}
		if err := json.Unmarshal([]byte(patterns), &rule.Patterns); err != nil {
			return nil, fmt.Errorf("error decoding patterns for rule %d: %w", rule.ID, err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func (s *SQLiteStorage) IsProcessed(ctx context.Context, accountID, commentID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_comments WHERE account_id = ? AND comment_id = ?)`,
		accountID, commentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking processed comment: %w", err)
	}
	return exists == 1, nil
}

func (s *SQLiteStorage) MarkProcessed(ctx context.Context, accountID, commentID, mediaID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_comments (account_id, comment_id, media_id, processed_at)
		 VALUES (?, ?, ?, ?)`,
		accountID, commentID, mediaID, time.Now())
	if err != nil {
		return false, fmt.Errorf("error marking comment processed: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}
	return inserted > 0, nil
}

func (s *SQLiteStorage) GetSession(ctx context.Context, accountID string) (*models.Session, error) {
	session := &models.Session{AccountID: accountID}
	err := s.db.QueryRowContext(ctx,
		`SELECT token, updated_at FROM sessions WHERE account_id = ?`,
		accountID).Scan(&session.Token, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %w", err)
	}
	return session, nil
}

func (s *SQLiteStorage) SaveSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (account_id, token, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (account_id) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		session.AccountID, session.Token, time.Now())
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) DeleteSession(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	account := &models.Account{}
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, use_proxy, proxy FROM accounts WHERE username = ?`,
		username).Scan(&account.Username, &account.Password, &account.UseProxy, &account.Proxy)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying account: %w", err)
	}
	return account, nil
}

func (s *SQLiteStorage) UpsertAccount(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password, use_proxy, proxy)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (username) DO UPDATE
		 SET password = excluded.password, use_proxy = excluded.use_proxy, proxy = excluded.proxy`,
		account.Username, account.Password, account.UseProxy, account.Proxy)
	if err != nil {
		return fmt.Errorf("error upserting account: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password, use_proxy, proxy FROM accounts ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.Username, &account.Password, &account.UseProxy, &account.Proxy); err != nil {
			return nil, fmt.Errorf("error scanning account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
