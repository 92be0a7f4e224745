package config

import (
	"time"
)

const (
	ModeDeep    = "deep"
	ModeShallow = "shallow"
)

type Config struct {
	Version       int           `toml:"version"`
	Mode          string        `toml:"mode"`
	SearchPaths   []string      `toml:"search_paths"`
	Verbose       bool          `toml:"verbose"`
	DB            Database      `toml:"db"`
	Exclude       Exclude       `toml:"exclude"`
	Workers       Workers       `toml:"workers"`
	Observability Observability `toml:"observability"`

	// DryRun records into memory instead of the database. Set from flags.
	DryRun bool `toml:"-"`
}

type Database struct {
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Workers struct {
	Count             int     `toml:"count"`
	ProgressPerSecond float64 `toml:"progress_per_second"`
}

type Observability struct {
	MetricsAddr  string `toml:"metrics_addr"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	OTLPInsecure bool   `toml:"otlp_insecure"`
	ServiceName  string `toml:"service_name"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Observability: Observability{OTLPInsecure: true}}
	applyDefaults(cfg)
	return cfg
}
