package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/toysnicaragua/toysbot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite session store. The DSN is a file path;
// the containing directory is created if missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetContext(userID string) (*models.ConversationContext, error) {
	return getJSON[models.ConversationContext](s.db, `SELECT data FROM user_contexts WHERE user_id = ?`, userID)
}

func (s *SQLiteStore) SaveContext(userID string, c *models.ConversationContext) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal context for %s: %w", userID, err)
	}
	_, err = s.db.Exec(`INSERT INTO user_contexts (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now().Unix())
	if err != nil {
		slog.Error("SQLiteStore SaveContext failed", "error", err, "user", userID)
		return fmt.Errorf("failed to save context for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteContext(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_contexts WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete context for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) GetProfile(userID string) (*models.UserProfile, error) {
	return getJSON[models.UserProfile](s.db, `SELECT data FROM user_profiles WHERE user_id = ?`, userID)
}

func (s *SQLiteStore) SaveProfile(userID string, p *models.UserProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile for %s: %w", userID, err)
	}
	_, err = s.db.Exec(`INSERT INTO user_profiles (user_id, data, last_activity_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, last_activity_at = excluded.last_activity_at`,
		userID, string(data), p.LastActivityAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save profile for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteProfile(userID string) error {
	_, err := s.db.Exec(`DELETE FROM user_profiles WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) GetAdAttribution(userID string) (*models.AdAttribution, error) {
	return getJSON[models.AdAttribution](s.db, `SELECT data FROM ad_attributions WHERE user_id = ?`, userID)
}

func (s *SQLiteStore) SaveAdAttribution(userID string, a *models.AdAttribution) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal attribution for %s: %w", userID, err)
	}
	_, err = s.db.Exec(`INSERT INTO ad_attributions (user_id, data, received_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, received_at = excluded.received_at`,
		userID, string(data), a.ReceivedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save attribution for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAdAttribution(userID string) error {
	_, err := s.db.Exec(`DELETE FROM ad_attributions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete attribution for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) IdleUsers(olderThan time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT c.user_id FROM user_contexts c
		LEFT JOIN user_profiles p ON p.user_id = c.user_id
		WHERE p.user_id IS NULL OR p.last_activity_at < ?`, olderThan.Unix())
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// getJSON loads a single JSON-encoded row, returning (nil, nil) when absent.
func getJSON[T any](db *sql.DB, query, userID string) (*T, error) {
	var data string
	err := db.QueryRow(query, userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record for %s: %w", userID, err)
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to decode record for %s: %w", userID, err)
	}
	return &v, nil
}
