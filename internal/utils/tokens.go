package utils

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// API keys authenticate callers of the HTTP front. They are unrelated to the
// Carbone credential, which is a single outbound token.
var apiKeys struct {
	sync.RWMutex
	cache map[string]int
}

var (
	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrAPIKeyStoreNotReady signals that no key list has been loaded yet,
	// for example while the database is still starting.
	ErrAPIKeyStoreNotReady = errors.New("api key store not ready")
)

func ensureAPIKeysSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
		key TEXT PRIMARY KEY,
		rate_limit INTEGER NOT NULL DEFAULT 60,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		comment TEXT
	);`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_created_at ON api_keys (created_at);`,
	}
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadAPIKeysFromPostgres reads every API key and its rate limit and swaps the
// in-memory cache. On error the previous cache is kept.
func LoadAPIKeysFromPostgres(ctx context.Context, cfg PostgresConfig) error {
	db, err := PostgresDB(ctx, cfg)
	if err != nil {
		return err
	}
	if err := ensureAPIKeysSchema(ctx, db); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `SELECT key, rate_limit FROM api_keys;`)
	if err != nil {
		return err
	}
	defer rows.Close()

	cache := make(map[string]int)
	for rows.Next() {
		var key string
		var limit int
		if err := rows.Scan(&key, &limit); err != nil {
			return err
		}
		cache[key] = limit
	}
	if err := rows.Err(); err != nil {
		return err
	}

	apiKeys.Lock()
	apiKeys.cache = cache
	apiKeys.Unlock()
	return nil
}

// LoadAPIKeysFromMap replaces the cache with a copy of m. It serves the
// static keys from the config file and tests.
func LoadAPIKeysFromMap(m map[string]int) {
	cache := make(map[string]int, len(m))
	for k, v := range m {
		cache[k] = v
	}
	apiKeys.Lock()
	apiKeys.cache = cache
	apiKeys.Unlock()
}

// APIKeysReady returns true once the cache has been loaded at least once.
func APIKeysReady() bool {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	return apiKeys.cache != nil
}

// ValidateAPIKey checks whether key exists in the cache.
func ValidateAPIKey(key string) bool {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	_, ok := apiKeys.cache[key]
	return ok
}

// RateLimitFor returns the per-interval limit of key. Unknown keys and a
// limit of 0 disable token rate limiting.
func RateLimitFor(key string) int {
	apiKeys.RLock()
	defer apiKeys.RUnlock()
	return apiKeys.cache[key]
}

// RefreshAPIKeysPeriodically reloads the keys from Postgres every interval
// until ctx is done.
func RefreshAPIKeysPeriodically(ctx context.Context, cfg PostgresConfig, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := LoadAPIKeysFromPostgres(ctx, cfg); err != nil {
				Error("Failed to reload API keys", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
