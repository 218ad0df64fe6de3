package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultNATSURL         = "nats://localhost:4222"
	defaultRedisURL        = "redis://localhost:6379"
	defaultCacheDir        = ".packs"
	defaultRefreshInterval = 30 * time.Second
	defaultDedupRetention  = 15 * time.Minute
	defaultSnapshotTTL     = 24 * time.Hour
	defaultTenant          = "demo"
	defaultCacheMaxAge     = 7 * 24 * time.Hour

	envNATSURL         = "NATS_URL"
	envRedisURL        = "REDIS_URL"
	envIndexURL        = "PACK_INDEX_URL"
	envCacheDir        = "PACK_CACHE_DIR"
	envPublicKey       = "PACK_PUBLIC_KEY"
	envAllowUnsigned   = "PACK_ALLOW_UNSIGNED"
	envRefreshInterval = "PACK_REFRESH_INTERVAL"
	envDedupRetention  = "DEDUP_RETENTION"
	envSnapshotTTL     = "SNAPSHOT_TTL"
	envDefaultTenant   = "DEFAULT_TENANT"
	envCacheMaxAge     = "PACK_CACHE_MAX_AGE"
	envCacheMaxBytes   = "PACK_CACHE_MAX_BYTES"
)

// Config holds runtime configuration for the pack host.
type Config struct {
	NatsURL         string
	RedisURL        string
	IndexURL        string
	CacheDir        string
	PublicKey       string
	AllowUnsigned   bool
	RefreshInterval time.Duration
	DedupRetention  time.Duration
	SnapshotTTL     time.Duration
	DefaultTenant   string
	CacheMaxAge     time.Duration
	CacheMaxBytes   int64
}

// Load returns configuration using environment variables with sane defaults.
func Load() *Config {
	return &Config{
		NatsURL:         stringEnv(envNATSURL, defaultNATSURL),
		RedisURL:        stringEnv(envRedisURL, defaultRedisURL),
		IndexURL:        strings.TrimSpace(os.Getenv(envIndexURL)),
		CacheDir:        stringEnv(envCacheDir, defaultCacheDir),
		PublicKey:       strings.TrimSpace(os.Getenv(envPublicKey)),
		AllowUnsigned:   boolEnv(envAllowUnsigned),
		RefreshInterval: durationEnv(envRefreshInterval, defaultRefreshInterval),
		DedupRetention:  durationEnv(envDedupRetention, defaultDedupRetention),
		SnapshotTTL:     durationEnv(envSnapshotTTL, defaultSnapshotTTL),
		DefaultTenant:   stringEnv(envDefaultTenant, defaultTenant),
		CacheMaxAge:     durationEnv(envCacheMaxAge, defaultCacheMaxAge),
		CacheMaxBytes:   int64Env(envCacheMaxBytes, 0),
	}
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func int64Env(key string, fallback int64) int64 {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
