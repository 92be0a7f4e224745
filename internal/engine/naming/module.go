package naming

import (
	"os"
	"path/filepath"
	"strings"
)

// VirtualFile is the path used when indexing an in-memory snippet.
const VirtualFile = "virtual_file.py"

var sourceSuffixes = []string{".py", ".pyi"}

// ModuleNameFromPath derives the dotted module name of a source file from
// the longest search root that contains it. It reports false when no root
// matches or the remainder cannot be split into non-empty components.
func ModuleNameFromPath(path string, roots []string) (QualifiedName, bool) {
	if path == "" {
		return QualifiedName{}, false
	}
	if path == VirtualFile {
		return New(strings.TrimSuffix(VirtualFile, filepath.Ext(VirtualFile))), true
	}

	clean := path
	if abs, err := filepath.Abs(path); err == nil {
		clean = abs
	}
	for _, suffix := range sourceSuffixes {
		if strings.HasSuffix(clean, suffix) {
			clean = strings.TrimSuffix(clean, suffix)
			break
		}
	}

	root, ok := longestRoot(clean, roots)
	if !ok {
		return QualifiedName{}, false
	}
	rest := strings.TrimPrefix(clean[len(root):], string(filepath.Separator))
	if rest == "" {
		return QualifiedName{}, false
	}

	parts := strings.Split(rest, string(filepath.Separator))
	for _, p := range parts {
		if p == "" {
			return QualifiedName{}, false
		}
	}
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return QualifiedName{}, false
	}
	if parts[len(parts)-1] == "__builtin__" {
		parts = append([]string{BuiltinsModule}, parts[:len(parts)-1]...)
	}
	return New(parts...), true
}

func longestRoot(path string, roots []string) (string, bool) {
	best := ""
	found := false
	for _, r := range roots {
		if r == "" {
			continue
		}
		root := filepath.Clean(r)
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		if !hasPathPrefix(path, root) {
			continue
		}
		if !found || len(root) > len(best) {
			best = root
			found = true
		}
	}
	return best, found
}

func hasPathPrefix(path, root string) bool {
	if path == root {
		return true
	}
	if strings.HasSuffix(root, string(filepath.Separator)) {
		return strings.HasPrefix(path, root)
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// SearchRoots returns the package root of file (the first ancestor directory
// that is not itself a package) followed by extra, cleaned, absolute and
// without duplicates or empty entries.
func SearchRoots(file string, extra []string) []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(p string) {
		if strings.TrimSpace(p) == "" {
			return
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if seen[p] {
			return
		}
		seen[p] = true
		roots = append(roots, p)
	}

	if file != "" && file != VirtualFile {
		dir := filepath.Dir(file)
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		for isPackageDir(dir) {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
		add(dir)
	}
	for _, p := range extra {
		add(p)
	}
	return roots
}

func isPackageDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "__init__.py"))
	return err == nil && !info.IsDir()
}
