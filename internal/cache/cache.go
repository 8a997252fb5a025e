// Package cache stores analysis results keyed by analysis type and a hash of
// the request parameters.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache stores JSON-serializable values.
type Cache interface {
	// Get decodes the value stored under key into dst.
	Get(ctx context.Context, key string, dst any) error
	// Set stores v under key. A ttl of 0 keeps the value until evicted.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Key derives the cache key for an analysis request: the sha256 of the type
// followed by the parameters as JSON with sorted object keys.
func Key(analysisType string, params any) (string, error) {
	canonical, err := canonicalJSON(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache params: %w", err)
	}
	sum := sha256.Sum256(append([]byte(analysisType), canonical...))
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON re-encodes through a generic value so struct field order does
// not affect the key; encoding/json sorts map keys.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Config selects and configures a cache backend.
type Config struct {
	Backend   string
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// New builds the configured cache. It returns nil for BackendNone.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(), nil
	case BackendRedis:
		rc, err := DialRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case BackendNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
