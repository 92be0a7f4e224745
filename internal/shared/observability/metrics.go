package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyindexer_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	FilesIndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pyindexer_files_indexed_total",
		Help: "Total number of files indexed, by outcome.",
	}, []string{"outcome"})

	SymbolsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyindexer_symbols_recorded_total",
		Help: "Total number of symbol definitions recorded.",
	})

	ReferencesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyindexer_references_recorded_total",
		Help: "Total number of reference edges recorded.",
	})

	UnsolvedReferencesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyindexer_unsolved_references_total",
		Help: "Total number of name uses that could not be resolved.",
	})

	SyntaxErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pyindexer_errors_recorded_total",
		Help: "Total number of syntax and import errors recorded.",
	})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pyindexer_run_seconds",
		Help:    "Time spent on a complete indexing run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
)
