package sink

import (
	"database/sql"
	"fmt"
)

const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

// element ids are shared by files, symbols, local symbols and references.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  started_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
  finished_at_utc TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS element (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  type TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS file (
  id INTEGER PRIMARY KEY REFERENCES element(id),
  path TEXT NOT NULL,
  language TEXT NOT NULL DEFAULT '',
  digest INTEGER NOT NULL DEFAULT 0,
  run_id TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_file_path ON file(path);
CREATE TABLE IF NOT EXISTS symbol (
  id INTEGER PRIMARY KEY REFERENCES element(id),
  serialized_name TEXT NOT NULL,
  display_name TEXT NOT NULL,
  kind INTEGER NOT NULL DEFAULT 0,
  definition_kind INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_symbol_name ON symbol(serialized_name);
CREATE TABLE IF NOT EXISTS local_symbol (
  id INTEGER PRIMARY KEY REFERENCES element(id),
  name TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_local_symbol_name ON local_symbol(name);
CREATE TABLE IF NOT EXISTS reference_edge (
  id INTEGER PRIMARY KEY REFERENCES element(id),
  context_id INTEGER NOT NULL,
  target_id INTEGER NOT NULL,
  kind INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reference_edge ON reference_edge(context_id, target_id, kind);
CREATE TABLE IF NOT EXISTS source_location (
  element_id INTEGER NOT NULL,
  role TEXT NOT NULL,
  file_id INTEGER NOT NULL,
  start_line INTEGER NOT NULL,
  start_col INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  end_col INTEGER NOT NULL,
  PRIMARY KEY (element_id, role, file_id, start_line, start_col, end_line, end_col)
);
CREATE INDEX IF NOT EXISTS idx_source_location_file ON source_location(file_id);
CREATE TABLE IF NOT EXISTS unsolved_reference (
  context_id INTEGER NOT NULL,
  kind INTEGER NOT NULL,
  file_id INTEGER NOT NULL,
  start_line INTEGER NOT NULL,
  start_col INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  end_col INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS atomic_range (
  file_id INTEGER NOT NULL,
  start_line INTEGER NOT NULL,
  start_col INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  end_col INTEGER NOT NULL,
  PRIMARY KEY (file_id, start_line, start_col, end_line, end_col)
);
CREATE TABLE IF NOT EXISTS error (
  message TEXT NOT NULL,
  fatal INTEGER NOT NULL,
  file_id INTEGER NOT NULL,
  start_line INTEGER NOT NULL,
  start_col INTEGER NOT NULL,
  end_line INTEGER NOT NULL,
  end_col INTEGER NOT NULL,
  run_id TEXT NOT NULL DEFAULT ''
);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
