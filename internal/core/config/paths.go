package config

import (
	"path/filepath"
	"strings"
)

// ResolvedPaths holds the absolute paths a run works with.
type ResolvedPaths struct {
	DBPath      string
	SearchPaths []string
}

// ResolvePaths anchors relative database and search paths at base, which is
// the directory of the config file or the working directory.
func ResolvePaths(cfg *Config, base string) ResolvedPaths {
	resolved := ResolvedPaths{DBPath: ResolveRelative(base, cfg.DB.Path)}
	seen := make(map[string]bool, len(cfg.SearchPaths))
	for _, p := range cfg.SearchPaths {
		abs := ResolveRelative(base, p)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		resolved.SearchPaths = append(resolved.SearchPaths, abs)
	}
	return resolved
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
