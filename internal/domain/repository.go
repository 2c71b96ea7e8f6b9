// Package domain defines the core interfaces and types for MetShield.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Claim operations
	SaveClaim(ctx context.Context, claim *Claim) error
	GetClaim(ctx context.Context, claimID string) (*Claim, error)
	ListClaims(ctx context.Context, limit int) ([]*Claim, error)

	// Provider velocity: claims submitted by a doctor since the given time.
	CountProviderClaimsSince(ctx context.Context, doctorID string, since time.Time) (int, error)

	// Score results
	SaveScore(ctx context.Context, sc *ScoredClaim) error
	GetScore(ctx context.Context, claimID string) (*ScoredClaim, error)

	// Alert operations
	SaveAlert(ctx context.Context, alert *Alert) error
	RecentAlerts(ctx context.Context, limit int) ([]*Alert, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
