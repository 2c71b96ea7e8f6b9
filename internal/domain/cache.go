package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetPrediction retrieves a cached score by claim fingerprint.
	GetPrediction(ctx context.Context, fingerprint string) (*PredictionCache, error)

	// SetPrediction caches a score result so identical claim payloads
	// skip re-evaluation.
	SetPrediction(ctx context.Context, fingerprint string, pred *PredictionCache, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new value.
	// Used for velocity checks (e.g., provider claim count per day).
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	// GetCounter reads a counter without incrementing. Returns 0 if absent.
	GetCounter(ctx context.Context, key string) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// PredictionCache holds a cached scoring result keyed by claim fingerprint.
type PredictionCache struct {
	RawScore    int      `json:"rawScore"`
	Probability float64  `json:"probability"`
	Tier        RiskTier `json:"tier"`
	Indicators  []string `json:"indicators"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
