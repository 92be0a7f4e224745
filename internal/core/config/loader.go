package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pyindexer/internal/core/errors"
)

const (
	defaultDBPath      = "data/index.sqlite"
	defaultBusyTimeout = 5 * time.Second
	defaultProgress    = 2.0
	defaultServiceName = "pyindexer"
)

var defaultExcludeDirs = []string{".git", "__pycache__", "venv", ".venv", "node_modules"}

// Load reads a TOML file, applies defaults and environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read config"), errors.CtxPath, path)
	}
	return Parse(string(data))
}

// Parse decodes TOML content. Unset fields take their defaults; unknown keys
// are rejected.
func Parse(content string) (*Config, error) {
	cfg := &Config{Observability: Observability{OTLPInsecure: true}}
	meta, err := toml.Decode(content, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "decode config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Newf(errors.CodeValidationError, "unknown config keys: %s", strings.Join(keys, ", "))
	}

	ApplyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ModeDeep
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = defaultDBPath
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = defaultBusyTimeout
	}
	if cfg.Exclude.Dirs == nil {
		cfg.Exclude.Dirs = append([]string(nil), defaultExcludeDirs...)
	}
	if cfg.Workers.Count == 0 {
		cfg.Workers.Count = 4
	}
	if cfg.Workers.ProgressPerSecond <= 0 {
		cfg.Workers.ProgressPerSecond = defaultProgress
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = defaultServiceName
	}
}

// Validate checks a configuration after defaults and flag overrides were
// applied.
func Validate(cfg *Config) error {
	if cfg.Version != 1 {
		return errors.Newf(errors.CodeNotSupported, "unsupported config version %d; supported version is 1", cfg.Version)
	}
	if cfg.Mode != ModeDeep && cfg.Mode != ModeShallow {
		err := errors.Newf(errors.CodeValidationError, "mode must be one of: %s, %s", ModeDeep, ModeShallow)
		return errors.AddContext(err, errors.CtxMode, cfg.Mode)
	}
	if cfg.Workers.Count < 1 {
		return errors.Newf(errors.CodeValidationError, "workers.count must be >= 1, got %d", cfg.Workers.Count)
	}
	if !cfg.DryRun && strings.TrimSpace(cfg.DB.Path) == "" {
		return errors.New(errors.CodeValidationError, "db.path must not be empty")
	}
	for i, p := range cfg.SearchPaths {
		if strings.TrimSpace(p) == "" {
			return errors.Newf(errors.CodeValidationError, "search_paths[%d] must not be empty", i)
		}
	}
	return nil
}
