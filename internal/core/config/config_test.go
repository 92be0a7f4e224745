package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"pyindexer/internal/core/errors"
)

func TestLoad(t *testing.T) {
	content := `
version = 1
mode = "shallow"
search_paths = ["./src", "lib"]

[db]
path = "out/index.sqlite"
busy_timeout = "2s"

[exclude]
dirs = [".git"]
files = ["*_pb2.py"]

[workers]
count = 8

[observability]
metrics_addr = ":9090"
`
	path := filepath.Join(t.TempDir(), "pyindex.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mode != ModeShallow {
		t.Errorf("expected shallow mode, got %q", cfg.Mode)
	}
	if !reflect.DeepEqual(cfg.SearchPaths, []string{"./src", "lib"}) {
		t.Errorf("unexpected search paths %v", cfg.SearchPaths)
	}
	if cfg.DB.BusyTimeout != 2*time.Second {
		t.Errorf("expected 2s busy timeout, got %v", cfg.DB.BusyTimeout)
	}
	if !reflect.DeepEqual(cfg.Exclude.Files, []string{"*_pb2.py"}) || !reflect.DeepEqual(cfg.Exclude.Dirs, []string{".git"}) {
		t.Errorf("unexpected excludes %+v", cfg.Exclude)
	}
	if cfg.Workers.Count != 8 || cfg.Workers.ProgressPerSecond != defaultProgress {
		t.Errorf("unexpected workers %+v", cfg.Workers)
	}
	if cfg.Observability.MetricsAddr != ":9090" || !cfg.Observability.OTLPInsecure || cfg.Observability.ServiceName != "pyindexer" {
		t.Errorf("unexpected observability %+v", cfg.Observability)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Version != 1 || cfg.Mode != ModeDeep {
		t.Errorf("unexpected version/mode %d %q", cfg.Version, cfg.Mode)
	}
	if cfg.DB.Path != defaultDBPath || cfg.DB.BusyTimeout != defaultBusyTimeout {
		t.Errorf("unexpected db defaults %+v", cfg.DB)
	}
	if cfg.Workers.Count != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers.Count)
	}
	if !reflect.DeepEqual(cfg.Exclude.Dirs, defaultExcludeDirs) {
		t.Errorf("unexpected default exclude dirs %v", cfg.Exclude.Dirs)
	}
	if !reflect.DeepEqual(Default(), cfg) {
		t.Errorf("Default() should match an empty file:\n%+v\n%+v", Default(), cfg)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    errors.ErrorCode
	}{
		{"Mode", `mode = "fast"`, errors.CodeValidationError},
		{"Workers", "[workers]\ncount = -1", errors.CodeValidationError},
		{"Version", "version = 3", errors.CodeNotSupported},
		{"UnknownKey", "watch_paths = []", errors.CodeValidationError},
		{"EmptySearchPath", `search_paths = [" "]`, errors.CodeValidationError},
		{"Syntax", "mode = ", errors.CodeValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			if !errors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestValidateTagsRejectedMode(t *testing.T) {
	cfg := Default()
	cfg.Mode = "fast"
	err := Validate(cfg)
	var de *errors.DomainError
	if !stderrors.As(err, &de) {
		t.Fatalf("expected a domain error, got %v", err)
	}
	if de.Context[errors.CtxMode] != "fast" {
		t.Fatalf("expected rejected mode in context, got %v", de.Context)
	}
}

func TestValidateDryRunAllowsEmptyDatabase(t *testing.T) {
	cfg := Default()
	cfg.DB.Path = ""
	if err := Validate(cfg); err == nil {
		t.Fatal("expected empty db path to fail outside dry runs")
	}
	cfg.DryRun = true
	if err := Validate(cfg); err != nil {
		t.Fatalf("dry run should not need a database: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PYINDEXER_MODE", "shallow")
	t.Setenv("PYINDEXER_WORKERS_COUNT", "2")
	t.Setenv("PYINDEXER_DB_BUSY_TIMEOUT", "750ms")

	cfg, err := Parse(`mode = "deep"`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Mode != ModeShallow || cfg.Workers.Count != 2 || cfg.DB.BusyTimeout != 750*time.Millisecond {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.SearchPaths = []string{"src", "./src", "/abs/lib"}
	got := ResolvePaths(cfg, "/work")
	if got.DBPath != filepath.Clean("/work/data/index.sqlite") {
		t.Errorf("unexpected db path %q", got.DBPath)
	}
	want := []string{filepath.Clean("/work/src"), filepath.Clean("/abs/lib")}
	if !reflect.DeepEqual(got.SearchPaths, want) {
		t.Errorf("expected %v, got %v", want, got.SearchPaths)
	}
}
