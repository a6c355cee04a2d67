package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/toysnicaragua/toysbot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres session store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetContext(userID string) (*models.ConversationContext, error) {
	return getJSON[models.ConversationContext](s.db, `SELECT data FROM user_contexts WHERE user_id = $1`, userID)
}

func (s *PostgresStore) SaveContext(userID string, c *models.ConversationContext) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal context for %s: %w", userID, err)
	}
	_, err = s.db.Exec(`INSERT INTO user_contexts (user_id, data, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT(user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		userID, string(data), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveContext failed", "error", err, "user", userID)
		return fmt.Errorf("failed to save context for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteContext(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_contexts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete context for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(userID string) (*models.UserProfile, error) {
	return getJSON[models.UserProfile](s.db, `SELECT data FROM user_profiles WHERE user_id = $1`, userID)
}

func (s *PostgresStore) SaveProfile(userID string, p *models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile for %s: %w", userID, err)
	}
	_, err = s.db.Exec(`INSERT INTO user_profiles (user_id, data, last_activity_at) VALUES ($1, $2, $3)
		ON CONFLICT(user_id) DO UPDATE SET data = EXCLUDED.data, last_activity_at = EXCLUDED.last_activity_at`,
		userID, string(data), p.LastActivityAt)
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteProfile(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_profiles WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) GetAdAttribution(userID string) (*models.AdAttribution, error) {
	return getJSON[models.AdAttribution](s.db, `SELECT data FROM ad_attributions WHERE user_id = $1`, userID)
}

func (s *PostgresStore) SaveAdAttribution(userID string, a *models.AdAttribution) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal attribution for %s: %w", userID, err)
	}
	_, err = s.db.Exec(`INSERT INTO ad_attributions (user_id, data, received_at) VALUES ($1, $2, $3)
		ON CONFLICT(user_id) DO UPDATE SET data = EXCLUDED.data, received_at = EXCLUDED.received_at`,
		userID, string(data), a.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to save attribution for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteAdAttribution(userID string) error {
	_, err := s.db.Exec(`DELETE FROM ad_attributions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete attribution for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) IdleUsers(olderThan time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT c.user_id FROM user_contexts c
		LEFT JOIN user_profiles p ON p.user_id = c.user_id
		WHERE p.user_id IS NULL OR p.last_activity_at < $1`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query idle users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan idle user row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate idle user rows: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
