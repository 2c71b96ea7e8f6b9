package domain

import "time"

// Config holds the complete MetShield configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// Scoring holds the indicator table and tier thresholds
	Scoring ScoringConfig `json:"scoring"`

	// Feed configures the live feed buffer and broadcaster
	Feed FeedConfig `json:"feed"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// FeedConfig holds live feed settings.
type FeedConfig struct {
	// BufferSize is the ring buffer capacity for late-joining subscribers.
	BufferSize int `json:"bufferSize"`

	// SubscriberQueueSize bounds each subscriber's delivery queue.
	// When full, the oldest queued event is dropped to admit the newest.
	SubscriberQueueSize int `json:"subscriberQueueSize"`

	// HeartbeatInterval is the SSE keepalive interval in seconds.
	HeartbeatInterval int `json:"heartbeatInterval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Scoring: ScoringConfig{
			ProbabilityMidpoint:  28,
			ProbabilitySteepness: 12,
			Thresholds: []TierThreshold{
				{Tier: TierCritical, MinProbability: 0.9},
				{Tier: TierHigh, MinProbability: 0.7},
				{Tier: TierMedium, MinProbability: 0.3},
			},
		},
		Feed: FeedConfig{
			BufferSize:          50,
			SubscriberQueueSize: 64,
			HeartbeatInterval:   15,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./metshield.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "metshield",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "metshield",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}

// Validate checks the configuration for fatal misconfiguration.
// A failure here aborts startup; nothing is partially initialized.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigurationError{Field: "server.port", Reason: "must be in 1-65535"}
	}
	if c.Feed.BufferSize <= 0 {
		return &ConfigurationError{Field: "feed.bufferSize", Reason: "must be positive"}
	}
	if c.Feed.SubscriberQueueSize <= 0 {
		return &ConfigurationError{Field: "feed.subscriberQueueSize", Reason: "must be positive"}
	}
	if c.Scoring.ProbabilitySteepness <= 0 {
		return &ConfigurationError{Field: "scoring.probabilitySteepness", Reason: "must be positive"}
	}
	for _, ind := range c.Scoring.Indicators {
		if ind.Name == "" {
			return &ConfigurationError{Field: "scoring.indicators", Reason: "indicator name is required"}
		}
		if ind.Weight < 0 {
			return &ConfigurationError{Field: "scoring.indicators." + ind.Name, Reason: "weight must be non-negative"}
		}
		if ind.Expression == "" {
			return &ConfigurationError{Field: "scoring.indicators." + ind.Name, Reason: "expression is required"}
		}
	}
	prev := 2.0
	for _, t := range c.Scoring.Thresholds {
		if t.MinProbability < 0 || t.MinProbability > 1 {
			return &ConfigurationError{Field: "scoring.thresholds", Reason: "minProbability must be in [0,1]"}
		}
		if t.MinProbability >= prev {
			return &ConfigurationError{Field: "scoring.thresholds", Reason: "thresholds must be strictly descending"}
		}
		prev = t.MinProbability
	}
	return nil
}
