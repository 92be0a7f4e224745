package app

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"pyindexer/internal/core/errors"
	"pyindexer/internal/shared/util"
)

// Scanner finds Python source files below a set of paths.
type Scanner struct {
	supported func(path string) bool
	dirGlobs  []glob.Glob
	fileGlobs []glob.Glob
}

// NewScanner compiles the exclude patterns. Patterns match either the base
// name or the slash-separated path relative to the scanned root.
func NewScanner(supported func(path string) bool, excludeDirs, excludeFiles []string) (*Scanner, error) {
	dirGlobs, err := compileGlobs(excludeDirs, "dir")
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileGlobs(excludeFiles, "file")
	if err != nil {
		return nil, err
	}
	return &Scanner{supported: supported, dirGlobs: dirGlobs, fileGlobs: fileGlobs}, nil
}

func compileGlobs(patterns []string, what string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(util.NormalizePatternPath(p), '/')
		if err != nil {
			return nil, errors.Wrap(fmt.Errorf("invalid exclude %s pattern %q: %w", what, p, err), errors.CodeValidationError, "compile exclude pattern")
		}
		out = append(out, g)
	}
	return out, nil
}

// Collect returns the absolute, sorted and deduplicated list of supported
// files named by paths. Directories are walked; hidden and excluded
// directories are skipped. Files named explicitly are kept unless a file
// pattern excludes them.
func (s *Scanner) Collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		root, err := filepath.Abs(p)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "resolve scan path"), errors.CtxPath, p)
		}
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "stat scan path"), errors.CtxPath, p)
		}
		if !info.IsDir() {
			if s.supported(root) && !s.excluded(s.fileGlobs, filepath.Dir(root), root) {
				add(root)
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && (isHidden(d.Name()) || s.excluded(s.dirGlobs, root, path)) {
					slog.Debug("skipping directory", "path", path)
					return filepath.SkipDir
				}
				return nil
			}
			if !s.supported(path) || s.excluded(s.fileGlobs, root, path) {
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "walk scan path"), errors.CtxPath, p)
		}
	}

	sort.Strings(files)
	return files, nil
}

func (s *Scanner) excluded(globs []glob.Glob, root, path string) bool {
	if len(globs) == 0 {
		return false
	}
	base := filepath.Base(path)
	rel := util.RelativePatternPath(root, path)
	for _, g := range globs {
		if g.Match(base) || (rel != "" && g.Match(rel)) {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
