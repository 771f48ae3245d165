package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("CONFIG", "")

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_grpc":             "www.example:9000",
		"database_dsn":                   "postgres://db",
		"redis_url":                      "redis://cache:6379/1",
		"kafka_brokers":                  []string{"k1:9092"},
		"reconcile_interval":             "30s",
		"training_grace_period":          "2h",
		"reset_code_ttl":                 int64(15 * time.Minute),
		"reset_code_attempts_per_minute": 3,
		"admin_token_secret":             "from-file",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
		assert.Equal(t, []string{"k1:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
		assert.Equal(t, 2*time.Hour, cfg.TrainingGracePeriod)
		assert.Equal(t, 15*time.Minute, cfg.ResetCodeTTL)
		assert.Equal(t, 3, cfg.ResetCodeAttemptsPerMinute)
		assert.Equal(t, "from-file", cfg.AdminTokenSecret)
	})

	t.Run("fields missing from the file keep their values", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":8081", cfg.EndpointAddrHTTP)
		assert.Equal(t, "sporthack.notifications", cfg.KafkaTopic)
		assert.Equal(t, 15*time.Minute, cfg.PurgeInterval)
		assert.Equal(t, 3, cfg.ApplyRetries)
	})

	t.Run("CONFIG env is used when no flag is given", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("CONFIG", pathFlag)

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrGRPC)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("CONFIG", "")

		cfg := &Config{
			EndpointAddrGRPC:    "defaults:1234",
			DatabaseDSN:         "",
			TrainingGracePeriod: time.Hour,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrGRPC)
		assert.Equal(t, "", cfg.DatabaseDSN)
		assert.Equal(t, time.Hour, cfg.TrainingGracePeriod)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "absent.json")}

		require.Panics(t, func() { parseJson(&Config{}) })
	})
}

func TestLoadConfig_RejectsNegativeDurationFromJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{"apply_retry_delay": "-50ms"})
	os.Args = []string{"testbin"}
	t.Setenv("CONFIG", path)

	assert.PanicsWithError(t, "config: apply_retry_delay must not be negative, got -50ms", func() {
		LoadConfig()
	})
}
