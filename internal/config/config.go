package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type Config struct {
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	StreamWriteTimeout time.Duration
	Pools              []PoolSpec
	RedisAddr          string
	RedisKeyPrefix     string
	PostgresDSN        string
	AdminAPIKey        string
}

type PoolSpec struct {
	Name          string
	CapacityBytes int64
}

func Load() (Config, error) {
	pools, err := parsePools(envOrDefault("COORDINATOR_POOLS", "primary-server-resource=64MB,secondary-server-resource=64MB"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:           envOrDefault("COORDINATOR_HTTP_ADDR", ":8080"),
		ReadTimeout:        durationOrDefault("COORDINATOR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       durationOrDefault("COORDINATOR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        durationOrDefault("COORDINATOR_IDLE_TIMEOUT", 60*time.Second),
		StreamWriteTimeout: durationOrDefault("COORDINATOR_STREAM_WRITE_TIMEOUT", 5*time.Second),
		Pools:              pools,
		RedisAddr:          os.Getenv("COORDINATOR_REDIS_ADDR"),
		RedisKeyPrefix:     envOrDefault("COORDINATOR_REDIS_KEY_PREFIX", "tiercoord:tier"),
		PostgresDSN:        os.Getenv("COORDINATOR_POSTGRES_DSN"),
		AdminAPIKey:        os.Getenv("COORDINATOR_ADMIN_API_KEY"),
	}, nil
}

// parsePools reads "name=64MB,other=1GiB" into pool specs. Sizes accept
// anything humanize does.
func parsePools(raw string) ([]PoolSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("at least one pool must be configured")
	}

	entries := strings.Split(raw, ",")
	pools := make([]PoolSpec, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, size, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pool spec %q: want name=size", entry)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid pool spec %q: empty name", entry)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("pool %q defined twice", name)
		}
		seen[name] = struct{}{}

		capacity, err := humanize.ParseBytes(strings.TrimSpace(size))
		if err != nil {
			return nil, fmt.Errorf("invalid pool size in %q: %w", entry, err)
		}
		if capacity == 0 {
			return nil, fmt.Errorf("pool %q capacity must be positive", name)
		}
		pools = append(pools, PoolSpec{Name: name, CapacityBytes: int64(capacity)})
	}

	if len(pools) == 0 {
		return nil, fmt.Errorf("at least one pool must be configured")
	}
	return pools, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
