package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/replygram/replygram/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) AddRule(ctx context.Context, rule *models.Rule) error {
	query := `
		INSERT INTO rules (account_id, media_id, patterns, reply_text, direct_text, cooldown_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := s.db.QueryRowContext(
		ctx,
		query,
		rule.AccountID,
		rule.MediaID,
		pq.Array(rule.Patterns),
		rule.ReplyText,
		rule.DirectText,
		rule.CooldownSeconds,
	).Scan(&rule.ID)

	if err != nil {
		return fmt.Errorf("error creating rule: %w", err)
	}

	return nil
}

func (s *PostgresStorage) ListRules(ctx context.Context, accountID, mediaID string) ([]models.Rule, error) {
	query := `
		SELECT id, account_id, media_id, patterns, reply_text, direct_text, cooldown_seconds
		FROM rules
		WHERE ($1 = '' OR account_id = $1)
		  AND ($2 = '' OR media_id = $2)
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, accountID, mediaID)
	if err != nil {
		return nil, fmt.Errorf("error querying rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var rule models.Rule
		err := rows.Scan(
			&rule.ID,
			&rule.AccountID,
			&rule.MediaID,
			pq.Array(&rule.Patterns),
			&rule.ReplyText,
			&rule.DirectText,
			&rule.CooldownSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

func (s *PostgresStorage) IsProcessed(ctx context.Context, accountID, commentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM processed_comments WHERE account_id = $1 AND comment_id = $2)`,
		accountID, commentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking processed comment: %w", err)
	}
	return exists, nil
}

func (s *PostgresStorage) MarkProcessed(ctx context.Context, accountID, commentID, mediaID string) (bool, error) {
	// The primary key on (account_id, comment_id) makes this the single
	// point deciding which concurrent cycle owns the comment.
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_comments (account_id, comment_id, media_id, processed_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (account_id, comment_id) DO NOTHING`,
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

func (s *PostgresStorage) GetSession(ctx context.Context, accountID string) (*models.Session, error) {
	session := &models.Session{AccountID: accountID}
	err := s.db.QueryRowContext(ctx,
		`SELECT token, updated_at FROM sessions WHERE account_id = $1`,
		accountID).Scan(&session.Token, &session.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %w", err)
	}
	return session, nil
}

func (s *PostgresStorage) SaveSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (account_id, token, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (account_id) DO UPDATE SET token = EXCLUDED.token, updated_at = NOW()`,
		session.AccountID, session.Token)
	if err != nil {
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteSession(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	account := &models.Account{}
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password, use_proxy, proxy FROM accounts WHERE username = $1`,
		username).Scan(&account.Username, &account.Password, &account.UseProxy, &account.Proxy)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying account: %w", err)
	}
	return account, nil
}

func (s *PostgresStorage) UpsertAccount(ctx context.Context, account *models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (username, password, use_proxy, proxy)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (username) DO UPDATE
		 SET password = EXCLUDED.password, use_proxy = EXCLUDED.use_proxy, proxy = EXCLUDED.proxy`,
		account.Username, account.Password, account.UseProxy, account.Proxy)
	if err != nil {
		return fmt.Errorf("error upserting account: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListAccounts(ctx context.Context) ([]models.Account, error) {
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

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
