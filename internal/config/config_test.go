package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, env(nil))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, CacheMemory, cfg.CacheBackend)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.UseMemory)
	assert.Equal(t, 30*time.Second, cfg.CoreTimeout)
}

func TestLoad_EnvironmentAndFlags(t *testing.T) {
	cfg, err := Load(
		[]string{"--concurrency", "8", "--cache-backend", "gocache"},
		env(map[string]string{
			"POSTGRES_DSN":    "postgres://core@db/core",
			"CLICKHOUSE_DSN":  "clickhouse://ch:9000/chain",
			"CORE_API_URL":    "http://core:6270",
			"API_CONCURRENCY": "4",
			"USE_MEMORY":      "true",
			"PREFETCH_DAYS":   "3",
		}),
	)
	require.NoError(t, err)

	assert.Equal(t, "postgres://core@db/core", cfg.PostgresDSN)
	assert.Equal(t, "http://core:6270", cfg.CoreAPIURL)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, CacheGoCache, cfg.CacheBackend)
	assert.True(t, cfg.UseMemory)
	assert.Equal(t, 3, cfg.PrefetchDays)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	_, err := Load(nil, env(map[string]string{"API_CONCURRENCY": "many"}))
	assert.ErrorContains(t, err, "API_CONCURRENCY")

	_, err = Load(nil, env(map[string]string{"USE_MEMORY": "maybe"}))
	assert.ErrorContains(t, err, "USE_MEMORY")
}

func TestValidate(t *testing.T) {
	cfg := &Config{Concurrency: 0, CacheBackend: "redis"}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"core-api-url", "postgres-dsn", "clickhouse-dsn", "concurrency", "cache backend"} {
		assert.ErrorContains(t, err, want)
	}

	cfg = &Config{CoreAPIURL: "http://core", UseMemory: true, Concurrency: 1, CacheBackend: CacheMemory}
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# core\nEXPLORER_TEST_A=one\nEXPLORER_TEST_B = \"two\"\nnot a pair\nEXPLORER_TEST_C=three\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("EXPLORER_TEST_C", "kept")

	require.NoError(t, LoadEnvFile(path))
	t.Cleanup(func() {
		os.Unsetenv("EXPLORER_TEST_A")
		os.Unsetenv("EXPLORER_TEST_B")
	})

	assert.Equal(t, "one", os.Getenv("EXPLORER_TEST_A"))
	assert.Equal(t, "two", os.Getenv("EXPLORER_TEST_B"))
	assert.Equal(t, "kept", os.Getenv("EXPLORER_TEST_C"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
}
