// # cmd/pyindex/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pyindexer/internal/core/app"
	"pyindexer/internal/core/config"
	"pyindexer/internal/core/errors"
	"pyindexer/internal/core/ports"
	"pyindexer/internal/data/sink"
	"pyindexer/internal/shared/observability"
)

const (
	defaultConfigPath = "./pyindex.toml"
	exampleConfigPath = "./pyindex.example.toml"
)

var (
	configPath  = flag.String("config", defaultConfigPath, "Path to config file")
	database    = flag.String("database", "", "Override the SQLite database path")
	mode        = flag.String("mode", "", "Resolution mode: deep or shallow")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging and AST dumps")
	dryRun      = flag.Bool("dry-run", false, "Index into memory without writing a database")
	metricsAddr = flag.String("metrics-addr", "", "Serve /metrics and /health on this address")
	version     = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *version {
		fmt.Printf("pyindex v%s\n", VERSION)
		return 0
	}

	logger := setupLogging(*verbose)

	cfg, base, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	applyFlags(cfg)
	if cfg.Verbose && !*verbose {
		logger = setupLogging(true)
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	paths := config.ResolvePaths(cfg, base)
	cfg.SearchPaths = paths.SearchPaths

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = paths.SearchPaths
	}
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no input paths: pass files or directories, or set search_paths in the config")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		Insecure:    cfg.Observability.OTLPInsecure,
		ServiceName: cfg.Observability.ServiceName,
	})
	if err != nil {
		slog.Error("failed to setup tracing", "error", err)
		return 1
	}
	defer shutdownTracing(context.Background())

	out, closeSink, err := openSink(cfg, paths.DBPath)
	if err != nil {
		slog.Error("failed to open index", "path", paths.DBPath, "error", err)
		return 1
	}
	defer closeSink()

	svc, err := app.NewService(cfg, out, logger)
	if err != nil {
		slog.Error("failed to initialize indexer", "error", err)
		return 1
	}

	if cfg.Observability.MetricsAddr != "" {
		srv := observability.NewServer(cfg.Observability.MetricsAddr, svc.Health)
		if err := srv.Start(); err != nil {
			slog.Error("failed to start metrics server", "addr", cfg.Observability.MetricsAddr, "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				slog.Warn("metrics server shutdown failed", "error", err)
			}
		}()
	}

	scanner, err := svc.Scanner()
	if err != nil {
		slog.Error("invalid exclude patterns", "error", err)
		return 1
	}
	files, err := scanner.Collect(inputs)
	if err != nil {
		slog.Error("failed to collect files", "error", err)
		return 1
	}
	slog.Info("indexing", "files", len(files), "mode", cfg.Mode)

	res, err := svc.Run(ctx, files)
	if err != nil {
		slog.Error("indexing failed", "run_id", res.RunID, "error", err)
		return 1
	}

	target := paths.DBPath
	if cfg.DryRun {
		target = "(dry run)"
	}
	fmt.Print(renderSummary(res, cfg.Mode, target))
	return 0
}

func setupLogging(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// loadConfig reads path, falling back to the example config when the
// default path is missing and to built-in defaults when both are. base is
// the directory relative paths in the config are resolved against.
func loadConfig(path string) (*config.Config, string, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, configDir(path), nil
	}
	if path != defaultConfigPath || !errors.IsCode(err, errors.CodeNotFound) {
		return nil, "", err
	}
	cfg, err = config.Load(exampleConfigPath)
	if err == nil {
		return cfg, configDir(exampleConfigPath), nil
	}
	if !errors.IsCode(err, errors.CodeNotFound) {
		return nil, "", err
	}
	slog.Debug("no config file found, using defaults")
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	return config.Default(), cwd, nil
}

func configDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Dir(path)
	}
	return filepath.Dir(abs)
}

func applyFlags(cfg *config.Config) {
	if *database != "" {
		cfg.DB.Path = *database
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *verbose {
		cfg.Verbose = true
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
}

func openSink(cfg *config.Config, dbPath string) (ports.Sink, func(), error) {
	if cfg.DryRun {
		return sink.NewMemory(), func() {}, nil
	}
	store, err := sink.Open(dbPath, cfg.DB.BusyTimeout)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close index", "path", dbPath, "error", err)
		}
	}, nil
}
