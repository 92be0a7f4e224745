// Package app runs indexing over sets of files: it scans paths, schedules
// one indexer session per file and brackets the run in a sink transaction.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pyindexer/internal/core/config"
	"pyindexer/internal/core/errors"
	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/indexer"
	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/oracle"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/resolver"
	"pyindexer/internal/shared/observability"
	"pyindexer/internal/shared/util"
)

// stalledLease is how long a parser may stay leased before health reports
// the pool as stalled.
const stalledLease = time.Minute

// Result summarizes one indexing run.
type Result struct {
	RunID      string
	Files      int
	Failed     int
	Symbols    int
	References int
	Unsolved   int
	Errors     int
	Duration   time.Duration
}

// Service indexes files into a sink. Runs are serialized; files within a
// run are indexed in parallel.
type Service struct {
	cfg    *config.Config
	parser *parser.Parser
	sink   ports.Sink
	log    *slog.Logger

	mu sync.Mutex
}

// NewService validates cfg and binds it to out. cfg.SearchPaths are used as
// extra search roots and should already be absolute.
func NewService(cfg *config.Config, out ports.Sink, logger *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeValidationError, "config is required")
	}
	if out == nil {
		return nil, errors.New(errors.CodeValidationError, "sink is required")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		parser: parser.NewParser(parser.NewGrammarLoader()),
		sink:   out,
		log:    logger,
	}, nil
}

// Scanner returns a scanner configured with the service's excludes.
func (s *Service) Scanner() (*Scanner, error) {
	return NewScanner(s.parser.IsSupportedPath, s.cfg.Exclude.Dirs, s.cfg.Exclude.Files)
}

// job is one file to index; content is set for in-memory sources.
type job struct {
	path    string
	content []byte
}

// Run indexes files in one transaction. A read or parse failure of a
// single file is logged and counted; sink failures and cancellation abort
// the run and roll the transaction back.
func (s *Service) Run(ctx context.Context, files []string) (Result, error) {
	jobs := make([]job, len(files))
	for i, f := range files {
		jobs[i] = job{path: f}
	}
	return s.run(ctx, jobs)
}

// IndexSource indexes code as if it were the file virtual_file.py.
func (s *Service) IndexSource(ctx context.Context, code string) (Result, error) {
	return s.run(ctx, []job{{path: naming.VirtualFile, content: []byte(code)}})
}

func (s *Service) run(ctx context.Context, jobs []job) (res Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := s.cfg.Mode
	ctx, span := observability.Tracer.Start(ctx, "Service.Run", trace.WithAttributes(
		attribute.String("mode", mode),
		attribute.Int("files", len(jobs)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		observability.RunDuration.WithLabelValues(mode).Observe(res.Duration.Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if err := s.sink.Begin(ctx); err != nil {
		return res, errors.AddContext(err, errors.CtxOperation, "begin_run")
	}
	res.RunID = runIDOf(s.sink)
	span.SetAttributes(attribute.String("run_id", res.RunID))

	ws := oracle.NewWorkspace(s.parser, s.cfg.SearchPaths...)
	defer ws.Close()
	for _, j := range jobs {
		ws.AddRoots(naming.SearchRoots(j.path, s.cfg.SearchPaths)...)
	}
	var r ports.Resolver
	if mode == config.ModeShallow {
		r = resolver.NewShallow(ws)
	} else {
		r = resolver.NewDeep(oracle.New(ws))
	}

	progress := util.NewLimiter(s.cfg.Workers.ProgressPerSecond, 1)
	var (
		statsMu sync.Mutex
		total   indexer.Stats
		done    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers.Count)
	for _, j := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			stats, ok, err := s.indexFile(gctx, ws, r, j)
			if err != nil {
				return err
			}

			statsMu.Lock()
			defer statsMu.Unlock()
			done++
			if ok {
				total.Add(stats)
				res.Files++
			} else {
				res.Failed++
			}
			if progress.Allow() {
				s.log.Info("indexing progress", "done", done, "total", len(jobs))
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	res.Symbols = total.Symbols
	res.References = total.References
	res.Unsolved = total.Unsolved
	res.Errors = total.Errors

	if err != nil {
		if rbErr := s.sink.Rollback(); rbErr != nil {
			s.log.Warn("rollback failed", "run_id", res.RunID, "error", rbErr)
		}
		return res, err
	}
	if err = s.sink.Commit(); err != nil {
		return res, errors.AddContext(err, errors.CtxOperation, "commit_run")
	}

	observability.SymbolsRecordedTotal.Add(float64(res.Symbols))
	observability.ReferencesRecordedTotal.Add(float64(res.References))
	observability.UnsolvedReferencesTotal.Add(float64(res.Unsolved))
	observability.SyntaxErrorsTotal.Add(float64(res.Errors))
	s.log.Info("indexing finished",
		"run_id", res.RunID,
		"files", res.Files,
		"failed", res.Failed,
		"symbols", res.Symbols,
		"references", res.References,
	)
	return res, nil
}

// indexFile parses and indexes one job. ok is false when the file could not
// be read or parsed; err is set only for failures that abort the run.
func (s *Service) indexFile(ctx context.Context, ws *oracle.Workspace, r ports.Resolver, j job) (indexer.Stats, bool, error) {
	ctx, span := observability.Tracer.Start(ctx, "Service.indexFile", trace.WithAttributes(
		attribute.String("path", j.path),
	))
	defer span.End()

	var (
		mod *oracle.Module
		err error
	)
	if j.content != nil {
		mod, err = ws.OpenSource(j.path, j.content)
	} else {
		mod, err = ws.Open(j.path)
	}
	if err != nil {
		s.log.Warn("failed to parse file", "path", j.path, "error", err)
		observability.FilesIndexedTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		return indexer.Stats{}, false, nil
	}

	session := indexer.NewSession(mod.Unit, s.sink, r, indexer.Options{
		Roots:   ws.Roots(),
		Tables:  ws,
		Logger:  s.log,
		Verbose: s.cfg.Verbose,
	})
	stats, err := session.Index(ctx)
	if err != nil {
		observability.FilesIndexedTotal.WithLabelValues("aborted").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, false, fmt.Errorf("index %s: %w", j.path, err)
	}
	observability.FilesIndexedTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("symbols", stats.Symbols),
		attribute.Int("references", stats.References),
	)
	return stats, true, nil
}

// Health reports the sink and parser pool state for the /health endpoint.
func (s *Service) Health(ctx context.Context) map[string]string {
	components := map[string]string{"sink": "ok", "parser_pool": "ok"}
	if err := s.sink.Err(); err != nil {
		components["sink"] = err.Error()
	}
	if n, oldest := s.parser.Pool().Leases(); oldest > stalledLease {
		components["parser_pool"] = fmt.Sprintf("stalled: %d parsers leased, oldest for %s", n, oldest.Round(time.Second))
	}
	if err := ctx.Err(); err != nil {
		components["service"] = err.Error()
	}
	return components
}

func runIDOf(out ports.Sink) string {
	if r, ok := out.(interface{ RunID() string }); ok {
		if id := r.RunID(); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
