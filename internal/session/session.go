// Package session provides the per-user session store for ToysBot.
//
// The store keeps three partitioned tables keyed by user id: the conversation
// context, the long-lived user profile, and the ad-attribution record written
// by ad-platform webhooks. Backends include an in-memory store (the default),
// SQLite, and PostgreSQL; routing code depends only on the Store interface.
package session

import (
	"strings"
	"time"

	"github.com/toysnicaragua/toysbot/internal/models"
)

// Store is the session storage interface. Get methods return (nil, nil) when
// no record exists for the user.
type Store interface {
	GetContext(userID string) (*models.ConversationContext, error)
	SaveContext(userID string, c *models.ConversationContext) error
	DeleteContext(userID string) error

	GetProfile(userID string) (*models.UserProfile, error)
	SaveProfile(userID string, p *models.UserProfile) error
	DeleteProfile(userID string) error

	GetAdAttribution(userID string) (*models.AdAttribution, error)
	SaveAdAttribution(userID string, a *models.AdAttribution) error
	DeleteAdAttribution(userID string) error

	// IdleUsers returns the ids of users that have a live context but no
	// activity since the given time.
	IdleUsers(olderThan time.Time) ([]string, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite" otherwise. SQLite DSNs are plain file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
