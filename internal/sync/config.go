package sync

import "time"

// Config holds tunables for the sync engine.
type Config struct {
	SyncInterval       time.Duration // how often the background worker wakes
	SweepInterval      time.Duration // how often the retention sweeper runs
	BatchSize          int           // max operations drained per pass
	MaxRetries         int           // transient failures before terminal FAILED
	RetryBackoffUnit   time.Duration // next_retry_at = now + retry_count * unit
	MaxQueueSize       int           // per-user pending+syncing depth
	AutosaveTTL        time.Duration // snapshot expiry, refreshed on every write
	ConflictTTL        time.Duration // conflict record expiry
	CompletedRetention time.Duration // how long completed operations are kept
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:       5 * time.Second,
		SweepInterval:      24 * time.Hour,
		BatchSize:          10,
		MaxRetries:         3,
		RetryBackoffUnit:   5 * time.Minute,
		MaxQueueSize:       50,
		AutosaveTTL:        24 * time.Hour,
		ConflictTTL:        7 * 24 * time.Hour,
		CompletedRetention: 7 * 24 * time.Hour,
	}
}
