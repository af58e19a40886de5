// Package config loads runtime configuration. The hosted functions read
// everything from the environment; the standalone worker layers a YAML file
// on top for the bits that have no environment convention.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-provided configuration shared by every entry
// point.
type Config struct {
	// DestBucket is the replication target bucket in the destination
	// partition.
	DestBucket string `env:"DEST_BUCKET,required,notEmpty"`

	// DestBucketRegion is the destination bucket's region.
	DestBucketRegion string `env:"DEST_BUCKET_REGION,required,notEmpty"`

	// DestSecret names the secret holding the destination access key pair.
	DestSecret string `env:"DEST_SECRET,required,notEmpty"`

	// DestKMSKey, when set, encrypts replicated objects with this key.
	DestKMSKey string `env:"DEST_KMS_KEY"`

	// ObjectsQueue is the ordered queue URL between filter and consumer.
	ObjectsQueue string `env:"OBJECTS_QUEUE"`

	// ObjectsTable is the DynamoDB ledger table name.
	ObjectsTable string `env:"OBJECTS_TABLE"`

	// LogLevel controls slog verbosity: DEBUG, INFO, WARN or ERROR.
	LogLevel string `env:"LOGGING_LEVEL" envDefault:"INFO"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// SlogLevel maps the configured level name to a slog level. Unknown names
// fall back to INFO.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
