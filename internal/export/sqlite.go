package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jackzampolin/formscan/internal/aggregate"
)

// SQLiteSchema holds one row per run and one row per exported record.
// Payload fields are stored as a JSON object so that tables with different
// column sets share one layout; query them with json_extract.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	row_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS rows (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	file TEXT NOT NULL,
	page INTEGER NOT NULL,
	model TEXT NOT NULL,
	fields TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rows_run ON rows(run_id);
CREATE INDEX IF NOT EXISTS idx_rows_model ON rows(model);
`

// WriteSQLite appends the table's rows to the database at path under
// runID, creating the schema when needed. The run is written in one
// transaction.
func WriteSQLite(ctx context.Context, path, runID string, t *aggregate.Table) error {
	if t == nil {
		t = &aggregate.Table{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, row_count) VALUES (?, ?, ?)`,
		runID, time.Now().Unix(), t.Len(),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rows (run_id, file, page, model, fields) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range t.Rows {
		fields := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			fields[c] = r.Values[c]
		}
		payload, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, r.File, r.Page, string(r.Model), string(payload)); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}
