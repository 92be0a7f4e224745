package sink

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pyindexer/internal/core/errors"
	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultBusyTimeout = 5 * time.Second
)

const (
	roleDefinition = "definition"
	roleScope      = "scope"
	roleSignature  = "signature"
	roleReference  = "reference"
	roleQualifier  = "qualifier"
	roleLocal      = "local"
)

// SQLite writes one run per transaction. Symbols, files and local symbols
// are deduplicated across runs by unique indexes; ids handed out during a
// run are cached until the transaction ends.
type SQLite struct {
	path string
	db   *sql.DB

	mu    sync.Mutex
	tx    *sql.Tx
	runID string
	ids   map[string]ports.ID
	err   error
}

func Open(path string, busyTimeout time.Duration) (*SQLite, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "database path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.Newf(errors.CodeValidationError, "database path %q is a directory, expected file", cleanPath)
	}
	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.CodeStorage, fmt.Sprintf("create database directory %q", dir))
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, fmt.Sprintf("open sqlite index %q", cleanPath))
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStorage, fmt.Sprintf("ping sqlite index %q", cleanPath))
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CodeStorage, fmt.Sprintf("initialize sqlite schema %q", cleanPath))
	}
	return &SQLite{path: cleanPath, db: db}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLite) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// RunID identifies the open or last committed run.
func (s *SQLite) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

func (s *SQLite) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return errors.New(errors.CodeValidationError, "a run is already in progress")
	}
	var tx *sql.Tx
	err := withRetry("begin run", func() error {
		var berr error
		tx, berr = s.db.BeginTx(ctx, nil)
		return berr
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "begin run")
	}
	runID := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO runs(id) VALUES (?)`, runID); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, errors.CodeStorage, "record run")
	}
	s.tx = tx
	s.runID = runID
	s.ids = make(map[string]ports.ID)
	s.err = nil
	return nil
}

// Commit fails without writing anything when a record failed during the
// run.
func (s *SQLite) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return errors.New(errors.CodeValidationError, "no run in progress")
	}
	if s.err != nil {
		err := s.err
		s.rollbackLocked()
		return err
	}
	if err := pruneOrphans(s.tx); err != nil {
		s.rollbackLocked()
		return errors.Wrap(err, errors.CodeStorage, "finish run")
	}
	if _, err := s.tx.Exec(`UPDATE runs SET finished_at_utc = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), s.runID); err != nil {
		s.rollbackLocked()
		return errors.Wrap(err, errors.CodeStorage, "finish run")
	}
	err := s.tx.Commit()
	s.tx = nil
	s.ids = nil
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "commit run")
	}
	return nil
}

func (s *SQLite) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	if err := s.rollbackLocked(); err != nil && !stderrors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, errors.CodeStorage, "rollback run")
	}
	return nil
}

func (s *SQLite) rollbackLocked() error {
	err := s.tx.Rollback()
	s.tx = nil
	s.ids = nil
	return err
}

func (s *SQLite) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// write runs fn inside the open transaction unless an earlier write failed.
func (s *SQLite) write(op string, fn func(tx *sql.Tx) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if s.tx == nil {
		s.err = errors.AddContext(errors.New(errors.CodeStorage, "no run in progress"), errors.CtxOperation, op)
		return
	}
	if err := fn(s.tx); err != nil {
		s.err = errors.AddContext(errors.Wrap(err, errors.CodeStorage, op), errors.CtxOperation, op)
	}
}

// element returns the cached or stored id for key, inserting a new element
// through insert when neither exists.
func (s *SQLite) element(tx *sql.Tx, key, kind, lookup string, lookupArg any, insert func(id int64) error) (ports.ID, error) {
	if id, ok := s.ids[key]; ok {
		return id, nil
	}
	var id int64
	err := tx.QueryRow(lookup, lookupArg).Scan(&id)
	switch {
	case err == nil:
	case stderrors.Is(err, sql.ErrNoRows):
		res, err := tx.Exec(`INSERT INTO element(type) VALUES (?)`, kind)
		if err != nil {
			return 0, err
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, err
		}
		if err := insert(id); err != nil {
			return 0, err
		}
	default:
		return 0, err
	}
	s.ids[key] = ports.ID(id)
	return ports.ID(id), nil
}

// RecordFile registers path. The first registration in a run drops what
// earlier runs recorded inside the file, so re-indexing replaces it.
func (s *SQLite) RecordFile(path string) ports.ID {
	var id ports.ID
	key := "file|" + path
	s.write("record file", func(tx *sql.Tx) error {
		_, seen := s.ids[key]
		var err error
		id, err = s.element(tx, key, "file", `SELECT id FROM file WHERE path = ?`, path, func(n int64) error {
			_, err := tx.Exec(`INSERT INTO file(id, path, run_id) VALUES (?, ?, ?)`, n, path, s.runID)
			return err
		})
		if err != nil {
			return err
		}
		if !seen {
			if err := clearFile(tx, id); err != nil {
				return err
			}
		}
		_, err = tx.Exec(`UPDATE file SET run_id = ? WHERE id = ?`, s.runID, id)
		return err
	})
	return id
}

var fileScopedTables = []string{"source_location", "unsolved_reference", "atomic_range", "error"}

func clearFile(tx *sql.Tx, file ports.ID) error {
	for _, table := range fileScopedTables {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE file_id = ?`, file); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// pruneOrphans drops references and local symbols left without any
// occurrence once re-indexed files were cleared. Symbols are kept: they
// may be referenced from files outside the run.
func pruneOrphans(tx *sql.Tx) error {
	stmts := []string{
		`DELETE FROM reference_edge WHERE id NOT IN (SELECT element_id FROM source_location WHERE role = '` + roleReference + `')`,
		`DELETE FROM local_symbol WHERE id NOT IN (SELECT element_id FROM source_location WHERE role = '` + roleLocal + `')`,
		`DELETE FROM element WHERE id NOT IN (
  SELECT id FROM file UNION SELECT id FROM symbol UNION SELECT id FROM local_symbol UNION SELECT id FROM reference_edge)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("prune orphans: %w", err)
		}
	}
	return nil
}

func (s *SQLite) RecordFileLanguage(file ports.ID, language string) {
	s.write("record file language", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE file SET language = ? WHERE id = ?`, language, file)
		return err
	})
}

func (s *SQLite) RecordFileDigest(file ports.ID, digest uint64) {
	s.write("record file digest", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE file SET digest = ? WHERE id = ?`, int64(digest), file)
		return err
	})
}

func (s *SQLite) RecordSymbol(name naming.QualifiedName) ports.ID {
	var id ports.ID
	key := name.Serialize()
	s.write("record symbol", func(tx *sql.Tx) error {
		var err error
		id, err = s.element(tx, "symbol|"+key, "symbol", `SELECT id FROM symbol WHERE serialized_name = ?`, key, func(n int64) error {
			_, err := tx.Exec(`INSERT INTO symbol(id, serialized_name, display_name) VALUES (?, ?, ?)`, n, key, name.Display())
			return err
		})
		return err
	})
	return id
}

func (s *SQLite) RecordSymbolKind(symbol ports.ID, kind ports.SymbolKind) {
	s.write("record symbol kind", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE symbol SET kind = ? WHERE id = ?`, int(kind), symbol)
		return err
	})
}

// RecordSymbolDefinitionKind never downgrades an explicit definition.
func (s *SQLite) RecordSymbolDefinitionKind(symbol ports.ID, kind ports.DefinitionKind) {
	s.write("record definition kind", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE symbol SET definition_kind = MAX(definition_kind, ?) WHERE id = ?`, int(kind), symbol)
		return err
	})
}

func (s *SQLite) RecordSymbolLocation(symbol ports.ID, r ports.SourceRange) {
	s.location("record symbol location", symbol, roleDefinition, r)
}

func (s *SQLite) RecordSymbolScopeLocation(symbol ports.ID, r ports.SourceRange) {
	s.location("record scope location", symbol, roleScope, r)
}

func (s *SQLite) RecordSymbolSignatureLocation(symbol ports.ID, r ports.SourceRange) {
	s.location("record signature location", symbol, roleSignature, r)
}

func (s *SQLite) location(op string, element ports.ID, role string, r ports.SourceRange) {
	s.write(op, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
INSERT OR IGNORE INTO source_location(element_id, role, file_id, start_line, start_col, end_line, end_col)
VALUES (?, ?, ?, ?, ?, ?, ?)`, element, role, r.FileID, r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
		return err
	})
}

func (s *SQLite) RecordReference(context, target ports.ID, kind ports.ReferenceKind) ports.ID {
	var id ports.ID
	key := fmt.Sprintf("ref|%d|%d|%d", context, target, kind)
	s.write("record reference", func(tx *sql.Tx) error {
		if cached, ok := s.ids[key]; ok {
			id = cached
			return nil
		}
		var n int64
		err := tx.QueryRow(`SELECT id FROM reference_edge WHERE context_id = ? AND target_id = ? AND kind = ?`,
			context, target, int(kind)).Scan(&n)
		switch {
		case err == nil:
		case stderrors.Is(err, sql.ErrNoRows):
			res, err := tx.Exec(`INSERT INTO element(type) VALUES ('reference')`)
			if err != nil {
				return err
			}
			if n, err = res.LastInsertId(); err != nil {
				return err
			}
			if _, err := tx.Exec(`INSERT INTO reference_edge(id, context_id, target_id, kind) VALUES (?, ?, ?, ?)`,
				n, context, target, int(kind)); err != nil {
				return err
			}
		default:
			return err
		}
		id = ports.ID(n)
		s.ids[key] = id
		return nil
	})
	return id
}

func (s *SQLite) RecordReferenceLocation(reference ports.ID, r ports.SourceRange) {
	s.location("record reference location", reference, roleReference, r)
}

func (s *SQLite) RecordUnsolvedReference(context ports.ID, kind ports.ReferenceKind, r ports.SourceRange) {
	s.write("record unsolved reference", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
INSERT INTO unsolved_reference(context_id, kind, file_id, start_line, start_col, end_line, end_col)
VALUES (?, ?, ?, ?, ?, ?, ?)`, context, int(kind), r.FileID, r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
		return err
	})
}

func (s *SQLite) RecordQualifierLocation(symbol ports.ID, r ports.SourceRange) {
	s.location("record qualifier location", symbol, roleQualifier, r)
}

func (s *SQLite) RecordLocalSymbol(name string) ports.ID {
	var id ports.ID
	s.write("record local symbol", func(tx *sql.Tx) error {
		var err error
		id, err = s.element(tx, "local|"+name, "local_symbol", `SELECT id FROM local_symbol WHERE name = ?`, name, func(n int64) error {
			_, err := tx.Exec(`INSERT INTO local_symbol(id, name) VALUES (?, ?)`, n, name)
			return err
		})
		return err
	})
	return id
}

func (s *SQLite) RecordLocalSymbolLocation(local ports.ID, r ports.SourceRange) {
	s.location("record local symbol location", local, roleLocal, r)
}

func (s *SQLite) RecordAtomicSourceRange(r ports.SourceRange) {
	s.write("record atomic range", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
INSERT OR IGNORE INTO atomic_range(file_id, start_line, start_col, end_line, end_col)
VALUES (?, ?, ?, ?, ?)`, r.FileID, r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
		return err
	})
}

func (s *SQLite) RecordError(message string, fatal bool, r ports.SourceRange) {
	s.write("record error", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
INSERT INTO error(message, fatal, file_id, start_line, start_col, end_line, end_col, run_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, message, fatal, r.FileID, r.StartLine, r.StartColumn, r.EndLine, r.EndColumn, s.runID)
		return err
	})
}

func withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
