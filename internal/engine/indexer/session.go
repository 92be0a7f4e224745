// Package indexer turns one parsed Python file into symbols, references,
// local symbols and diagnostics recorded through a ports.Sink.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pyindexer/internal/core/errors"
	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

const language = "python"

type Options struct {
	// Roots are the search roots module names are derived from.
	Roots []string
	// Tables shares scope tables with the resolver; built on demand when nil.
	Tables  TableSource
	Logger  *slog.Logger
	Verbose bool
}

// Stats counts what one session recorded.
type Stats struct {
	Symbols    int
	References int
	Unsolved   int
	Errors     int
}

func (s *Stats) Add(other Stats) {
	s.Symbols += other.Symbols
	s.References += other.References
	s.Unsolved += other.Unsolved
	s.Errors += other.Errors
}

// Session indexes exactly one unit. It owns the context stack of the
// traversal and must be used from a single goroutine.
type Session struct {
	unit      *parser.Unit
	sink      ports.Sink
	resolver  ports.Resolver
	overrides ports.OverrideResolver
	tables    TableSource
	table     *scope.Table
	names     *Namer
	stack     *ContextStack
	log       *slog.Logger
	verbose   bool

	ctx      context.Context
	err      error
	fileID   ports.ID
	stats    Stats
	visit    map[string]bool
	reported map[uint]bool
	nodes    int
	used     bool
}

func NewSession(unit *parser.Unit, sink ports.Sink, resolver ports.Resolver, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	tables := opts.Tables
	if tables == nil {
		tables = &builtTables{}
	}
	s := &Session{
		unit:     unit,
		sink:     sink,
		resolver: resolver,
		tables:   tables,
		names:    NewNamer(opts.Roots, tables),
		stack:    &ContextStack{},
		log:      log,
		verbose:  opts.Verbose,
	}
	if o, ok := resolver.(ports.OverrideResolver); ok {
		s.overrides = o
	}
	return s
}

// Index walks the unit once. Records go to the sink as they are found;
// transaction control is left to the caller.
func (s *Session) Index(ctx context.Context) (Stats, error) {
	if s.unit == nil || s.unit.Root() == nil {
		return Stats{}, errors.New(errors.CodeValidationError, "session requires a parsed unit")
	}
	if s.sink == nil || s.resolver == nil {
		return Stats{}, errors.New(errors.CodeValidationError, "session requires a sink and a resolver")
	}
	if s.used {
		return Stats{}, errors.New(errors.CodeValidationError, "session already indexed its unit")
	}
	s.used = true
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	s.ctx = ctx
	s.table = s.tables.TableOf(s.unit)

	s.fileID = s.sink.RecordFile(s.unit.Path)
	s.sink.RecordFileLanguage(s.fileID, language)
	s.sink.RecordFileDigest(s.fileID, s.unit.Hash)
	file := newFrame(s.fileID, FrameFile, naming.QualifiedName{}, nil)
	file.Display = s.unit.Path
	s.stack.Push(file)

	if name, ok := s.names.ModuleName(s.unit.Path); ok {
		id := s.sink.RecordSymbol(name)
		s.sink.RecordSymbolDefinitionKind(id, ports.DefinitionExplicit)
		s.sink.RecordSymbolKind(id, ports.SymbolModule)
		s.stats.Symbols++
		s.stack.Push(newFrame(id, FrameModule, name, nil))
	} else {
		s.log.Debug("file is outside every search root", "path", s.unit.Path)
	}

	if s.verbose {
		if err := parser.Dump(debugWriter{s.log}, s.unit); err != nil {
			s.log.Debug("ast dump failed", "path", s.unit.Path, "error", err)
		}
	}

	s.walk()

	if s.err == nil {
		s.err = ctx.Err()
	}
	if s.err != nil {
		return s.stats, s.err
	}
	if err := s.sink.Err(); err != nil {
		return s.stats, fmt.Errorf("index %s: %w", s.unit.Path, err)
	}
	return s.stats, nil
}

// debugWriter logs every written line at debug level.
type debugWriter struct {
	log *slog.Logger
}

func (w debugWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w.log.Debug(line)
	}
	return len(p), nil
}
