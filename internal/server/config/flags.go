package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/sporthack/internal/flagx"
)

var knownFlags = []string{"-a", "-o", "-d", "-r", "-k", "-t", "-l", "-i", "-p", "-b", "-g", "-x", "-n", "-m", "-s"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-o string     ops HTTP bind address (health, metrics)
//	-d string     PostgreSQL DSN ("" = in-memory store)
//	-r string     Redis URL for the leaderboard
//	-k string     comma-separated Kafka brokers
//	-t string     Kafka topic
//	-l string     log level (debug, info, warn, error)
//	-i duration   reconcile interval
//	-p duration   expired reset code purge interval
//	-b duration   leaderboard rebuild interval
//	-g duration   training late check-in window
//	-x duration   reset code validity
//	-n int        reset code validation attempts per user per minute
//	-m int        retries of a failed attendee increment
//	-s string     admin token secret
//
// Args are first filtered with flagx.FilterArgs so that flags owned by other
// components (-c/-config) do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "o", config.EndpointAddrHTTP, "address and port for health and metrics")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "redis URL")
	brokers := fs.String("k", strings.Join(config.KafkaBrokers, ","), "kafka brokers (comma separated)")
	fs.StringVar(&config.KafkaTopic, "t", config.KafkaTopic, "kafka topic")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.DurationVar(&config.ReconcileInterval, "i", config.ReconcileInterval, "reconcile interval")
	fs.DurationVar(&config.PurgeInterval, "p", config.PurgeInterval, "reset code purge interval")
	fs.DurationVar(&config.LeaderboardRebuildInterval, "b", config.LeaderboardRebuildInterval, "leaderboard rebuild interval")
	fs.DurationVar(&config.TrainingGracePeriod, "g", config.TrainingGracePeriod, "training late check-in window")
	fs.DurationVar(&config.ResetCodeTTL, "x", config.ResetCodeTTL, "reset code validity")
	fs.IntVar(&config.ResetCodeAttemptsPerMinute, "n", config.ResetCodeAttemptsPerMinute, "reset code attempts per minute")
	fs.IntVar(&config.ApplyRetries, "m", config.ApplyRetries, "attendee increment retries")
	fs.StringVar(&config.AdminTokenSecret, "s", config.AdminTokenSecret, "admin token secret")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.KafkaBrokers = flagx.SplitList(*brokers)
}
