package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: PYINDEXER_[SECTION]_[KEY] (e.g., PYINDEXER_DB_PATH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Mode, "PYINDEXER_MODE")
	setEnvBool(&cfg.Verbose, "PYINDEXER_VERBOSE")

	// Database
	setEnvString(&cfg.DB.Path, "PYINDEXER_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "PYINDEXER_DB_BUSY_TIMEOUT")

	// Workers
	setEnvInt(&cfg.Workers.Count, "PYINDEXER_WORKERS_COUNT")
	setEnvFloat64(&cfg.Workers.ProgressPerSecond, "PYINDEXER_WORKERS_PROGRESS_PER_SECOND")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddr, "PYINDEXER_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "PYINDEXER_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.OTLPInsecure, "PYINDEXER_OBSERVABILITY_OTLP_INSECURE")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
