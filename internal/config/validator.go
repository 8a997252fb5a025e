package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/user/wind_analyzer_go/internal/cache"
	"github.com/user/wind_analyzer_go/internal/logging"
)

// ValidationError is a single invalid setting.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidCacheBackends lists the accepted cache.backend values.
func ValidCacheBackends() []string {
	return []string{cache.BackendMemory, cache.BackendRedis, cache.BackendNone}
}

// Validate returns every problem found, or nil.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field string, value any, msg string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: msg})
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("backend.base_url", c.Backend.BaseURL, "must be an absolute http(s) URL")
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("backend.base_url", c.Backend.BaseURL, "scheme must be http or https")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		add("backend.timeout_seconds", c.Backend.TimeoutSeconds, "must be positive")
	}

	if c.Polling.IntervalMs < 100 {
		add("polling.interval_ms", c.Polling.IntervalMs, "must be at least 100")
	}
	if c.Polling.MaxAttempts < 0 {
		add("polling.max_attempts", c.Polling.MaxAttempts, "must not be negative (0 = unlimited)")
	}
	if c.Polling.MaxDurationSeconds < 0 {
		add("polling.max_duration_seconds", c.Polling.MaxDurationSeconds, "must not be negative (0 = unlimited)")
	}

	if err := c.WindRose.Validate(); err != nil {
		add("windrose", c.WindRose, err.Error())
	}
	if err := c.Geometry.Full().Validate(); err != nil {
		add("geometry", c.Geometry.Full(), err.Error())
	}
	if err := c.Geometry.Compact.Validate(); err != nil {
		add("geometry.compact", c.Geometry.Compact, err.Error())
	}

	if !slices.Contains(ValidCacheBackends(), c.Cache.Backend) {
		add("cache.backend", c.Cache.Backend, fmt.Sprintf("must be one of %v", ValidCacheBackends()))
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.RedisAddr == "" {
		add("cache.redis_addr", c.Cache.RedisAddr, "required for the redis backend")
	}
	if c.Cache.TTLMinutes < 0 {
		add("cache.ttl_minutes", c.Cache.TTLMinutes, "must not be negative")
	}

	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		add("logging.level", c.Logging.Level, fmt.Sprintf("must be one of %v", logging.ValidLevels()))
	}

	return errs
}
