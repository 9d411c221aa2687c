// Package config loads explorer settings from flags whose defaults come from the
// environment, after an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends.
const (
	CacheMemory  = "memory"
	CacheGoCache = "gocache"
)

// Config holds every setting of the explorer binary.
type Config struct {
	PostgresDSN   string
	ClickhouseDSN string
	CoreAPIURL    string
	CoreWSURL     string
	GenesisFile   string
	Concurrency   int
	CacheBackend  string
	HTTPAddr      string
	UseMemory     bool

	// PrefetchDays warms the blocks-by-date pages of the last days at startup. 0 disables.
	PrefetchDays int

	CoreTimeout  time.Duration
	CacheCleanup time.Duration
}

// Load parses args with defaults taken from the environment. getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("explorer", flag.ContinueOnError)

	concurrency, err := envInt(getenv, "API_CONCURRENCY", 1)
	if err != nil {
		return nil, err
	}
	useMemory, err := envBool(getenv, "USE_MEMORY", false)
	if err != nil {
		return nil, err
	}
	prefetch, err := envInt(getenv, "PREFETCH_DAYS", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", getenv("POSTGRES_DSN"), "PostgreSQL connection string (core database)")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (chain index)")
	fs.StringVar(&cfg.CoreAPIURL, "core-api-url", getenv("CORE_API_URL"), "Core node HTTP API base URL")
	fs.StringVar(&cfg.CoreWSURL, "core-ws-url", getenv("CORE_WS_URL"), "Core node block feed WebSocket URL (empty disables tip invalidation)")
	fs.StringVar(&cfg.GenesisFile, "genesis-file", getenv("GENESIS_FILE"), "Genesis accounts JSON file (empty disables genesis endpoints)")
	fs.IntVar(&cfg.Concurrency, "concurrency", concurrency, "Per-block and per-date detail fan-out")
	fs.StringVar(&cfg.CacheBackend, "cache-backend", withDefault(getenv("CACHE_BACKEND"), CacheMemory), "Cache store: memory or gocache")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", withDefault(getenv("HTTP_ADDR"), ":8080"), "HTTP listen address")
	fs.BoolVar(&cfg.UseMemory, "use-memory", useMemory, "Use in-memory stores instead of PostgreSQL and ClickHouse")
	fs.IntVar(&cfg.PrefetchDays, "prefetch-days", prefetch, "Days of blocks to prefetch at startup")
	fs.DurationVar(&cfg.CoreTimeout, "core-timeout", 30*time.Second, "Core node HTTP request timeout")
	fs.DurationVar(&cfg.CacheCleanup, "cache-cleanup", 10*time.Minute, "go-cache expired entry cleanup interval")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.CoreAPIURL == "" {
		errs = append(errs, errors.New("--core-api-url (CORE_API_URL) is required"))
	}
	if !c.UseMemory {
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("--postgres-dsn (POSTGRES_DSN) is required (use --use-memory for in-memory stores)"))
		}
		if c.ClickhouseDSN == "" {
			errs = append(errs, errors.New("--clickhouse-dsn (CLICKHOUSE_DSN) is required (use --use-memory for in-memory stores)"))
		}
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.CacheBackend != CacheMemory && c.CacheBackend != CacheGoCache {
		errs = append(errs, fmt.Errorf("cache backend must be %q or %q, got %q", CacheMemory, CacheGoCache, c.CacheBackend))
	}
	if c.PrefetchDays < 0 {
		errs = append(errs, fmt.Errorf("prefetch days must not be negative, got %d", c.PrefetchDays))
	}
	return errors.Join(errs...)
}

// LoadEnvFile sets the KEY=VALUE pairs of path that are not already set.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
