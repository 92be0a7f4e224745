package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pyindexer/internal/core/config"
	"pyindexer/internal/core/errors"
	"pyindexer/internal/data/sink"
	"pyindexer/internal/engine/naming"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func testConfig(mode string) *config.Config {
	cfg := config.Default()
	cfg.Mode = mode
	cfg.Workers.Count = 2
	cfg.DryRun = true
	return cfg
}

var project = map[string]string{
	"pkg/__init__.py": "",
	"README.md":       "not python",

	"pkg/shapes.py": `class Shape:
    def area(self):
        return 0
`,

	"main.py": `from pkg.shapes import Shape

s = Shape()
s.area()
`,
}

func TestServiceRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, mode := range []string{config.ModeDeep, config.ModeShallow} {
		t.Run(mode, func(t *testing.T) {
			dir := writeFiles(t, project)
			mem := sink.NewMemory()
			svc, err := NewService(testConfig(mode), mem, nil)
			require.NoError(t, err)

			scanner, err := svc.Scanner()
			require.NoError(t, err)
			files, err := scanner.Collect([]string{dir})
			require.NoError(t, err)
			require.Len(t, files, 3)

			res, err := svc.Run(context.Background(), files)
			require.NoError(t, err)
			assert.Equal(t, 3, res.Files)
			assert.Zero(t, res.Failed)
			assert.NotEmpty(t, res.RunID)
			assert.Positive(t, res.Symbols)
			assert.Positive(t, res.References)

			for _, name := range []string{"main", "pkg", "pkg.shapes", "pkg.shapes.Shape", "pkg.shapes.Shape.area"} {
				_, ok := mem.Symbol(name)
				assert.True(t, ok, "symbol %s missing; have %v", name, mem.Symbols())
			}
			assert.NotEmpty(t, mem.ReferencesTo("pkg.shapes.Shape"))
			assert.Len(t, mem.Files(), 3)
		})
	}
}

func TestServiceIndexSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	mem := sink.NewMemory()
	svc, err := NewService(testConfig(config.ModeDeep), mem, nil)
	require.NoError(t, err)

	res, err := svc.IndexSource(context.Background(), "def f():\n    return 1\n\nf()\n")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	_, ok := mem.Symbol("virtual_file.f")
	assert.True(t, ok, "have %v", mem.Symbols())
	files := mem.Files()
	require.Len(t, files, 1)
	assert.Equal(t, naming.VirtualFile, files[0].Path)
}

func TestServiceCountsUnreadableFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := writeFiles(t, map[string]string{"ok.py": "x = 1\n"})
	mem := sink.NewMemory()
	svc, err := NewService(testConfig(config.ModeDeep), mem, nil)
	require.NoError(t, err)

	res, err := svc.Run(context.Background(), []string{
		filepath.Join(dir, "ok.py"),
		filepath.Join(dir, "missing.py"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, res.Failed)
}

func TestServiceCancelledRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := writeFiles(t, project)
	mem := sink.NewMemory()
	svc, err := NewService(testConfig(config.ModeDeep), mem, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Run(ctx, []string{filepath.Join(dir, "main.py")})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mem.Symbols())
}

func TestServiceSQLite(t *testing.T) {
	dir := writeFiles(t, project)
	store, err := sink.Open(filepath.Join(t.TempDir(), "index.sqlite"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig(config.ModeDeep)
	cfg.DryRun = false
	svc, err := NewService(cfg, store, nil)
	require.NoError(t, err)

	first, err := svc.Run(context.Background(), []string{filepath.Join(dir, "main.py")})
	require.NoError(t, err)
	_, err = uuid.Parse(first.RunID)
	require.NoError(t, err)

	second, err := svc.Run(context.Background(), []string{filepath.Join(dir, "pkg", "shapes.py")})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, map[string]string{"sink": "ok", "parser_pool": "ok"}, svc.Health(context.Background()))
}

func TestNewServiceValidation(t *testing.T) {
	cfg := testConfig("fast")
	_, err := NewService(cfg, sink.NewMemory(), nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)

	_, err = NewService(testConfig(config.ModeDeep), nil, nil)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
}

func TestScannerCollect(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.py":                "",
		"b.pyi":               "",
		"notes.txt":           "",
		"gen/api_pb2.py":      "",
		"venv/lib/site.py":    "",
		".hidden/secret.py":   "",
		"src/pkg/__init__.py": "",
		"src/pkg/vendor/x.py": "",
		"src/pkg/module.py":   "",
	})

	scanner, err := NewScanner(func(p string) bool {
		return strings.HasSuffix(p, ".py") || strings.HasSuffix(p, ".pyi")
	}, []string{"venv", "src/pkg/vendor"}, []string{"*_pb2.py"})
	require.NoError(t, err)

	files, err := scanner.Collect([]string{dir, filepath.Join(dir, "a.py")})
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{"a.py", "b.pyi", "src/pkg/__init__.py", "src/pkg/module.py"}, rel)

	t.Run("MissingPath", func(t *testing.T) {
		_, err := scanner.Collect([]string{filepath.Join(dir, "nope")})
		assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)
	})

	t.Run("BadPattern", func(t *testing.T) {
		_, err := NewScanner(func(string) bool { return true }, []string{"[a-"}, nil)
		assert.True(t, errors.IsCode(err, errors.CodeValidationError), "got %v", err)
	})
}
