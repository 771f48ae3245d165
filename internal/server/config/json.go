package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/sporthack/internal/flagx"
	"github.com/dmitrijs2005/sporthack/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Fields left out of the file keep the value already present in Config.
type JsonConfig struct {
	EndpointAddrGRPC           *string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP           *string         `json:"endpoint_addr_http"`
	DatabaseDSN                *string         `json:"database_dsn"`
	RedisURL                   *string         `json:"redis_url"`
	KafkaBrokers               []string        `json:"kafka_brokers"`
	KafkaTopic                 *string         `json:"kafka_topic"`
	LogLevel                   *string         `json:"log_level"`
	ReconcileInterval          *timex.Duration `json:"reconcile_interval"`
	PurgeInterval              *timex.Duration `json:"purge_interval"`
	LeaderboardRebuildInterval *timex.Duration `json:"leaderboard_rebuild_interval"`
	TrainingGracePeriod        *timex.Duration `json:"training_grace_period"`
	ResetCodeTTL               *timex.Duration `json:"reset_code_ttl"`
	ResetCodeAttemptsPerMinute *int            `json:"reset_code_attempts_per_minute"`
	ApplyRetries               *int            `json:"apply_retries"`
	ApplyRetryDelay            *timex.Duration `json:"apply_retry_delay"`
	NotificationBuffer         *int            `json:"notification_buffer"`
	ShutdownTimeout            *timex.Duration `json:"shutdown_timeout"`
	AdminTokenSecret           *string         `json:"admin_token_secret"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The file path comes from the -c/-config flags or the CONFIG environment
// variable; without one nothing is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.KafkaTopic, c.KafkaTopic)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.AdminTokenSecret, c.AdminTokenSecret)
	if c.KafkaBrokers != nil {
		config.KafkaBrokers = c.KafkaBrokers
	}

	setDuration(&config.ReconcileInterval, c.ReconcileInterval)
	setDuration(&config.PurgeInterval, c.PurgeInterval)
	setDuration(&config.LeaderboardRebuildInterval, c.LeaderboardRebuildInterval)
	setDuration(&config.TrainingGracePeriod, c.TrainingGracePeriod)
	setDuration(&config.ResetCodeTTL, c.ResetCodeTTL)
	setDuration(&config.ApplyRetryDelay, c.ApplyRetryDelay)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)

	setInt(&config.ResetCodeAttemptsPerMinute, c.ResetCodeAttemptsPerMinute)
	setInt(&config.ApplyRetries, c.ApplyRetries)
	setInt(&config.NotificationBuffer, c.NotificationBuffer)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
