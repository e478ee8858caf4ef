// Package history keeps a sqlite record of audit runs and their rows.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nmasdoufi/printaudit/pkg/inventory"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	input       TEXT NOT NULL,
	output      TEXT NOT NULL,
	backend     TEXT NOT NULL,
	hosts       INTEGER NOT NULL,
	printers    INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS printer_rows (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	hostname     TEXT NOT NULL,
	printer_name TEXT NOT NULL,
	printer_ip   TEXT NOT NULL,
	printer_type TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS printer_rows_hostname ON printer_rows(hostname);
`

// Run summarises one audit run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Input      string
	Output     string
	Backend    string
	Hosts      int
	Printers   int
	Failed     int
}

// Store wraps the history database.
type Store struct{ db *sql.DB }

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-process database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun stores run and its rows in one transaction, assigning run.ID when
// it is empty.
func (s *Store) SaveRun(ctx context.Context, run *Run, rows []inventory.ReportRow) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs(id,started_at,finished_at,input,output,backend,hosts,printers,failed)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Input, run.Output, run.Backend,
		run.Hosts, run.Printers, run.Failed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO printer_rows(run_id,position,hostname,printer_name,printer_ip,printer_type) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()
	for i, r := range rows {
		typ := inventory.Classify(inventory.PrinterRecord{Name: r.PrinterName, Port: r.PrinterIP})
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.Hostname, r.PrinterName, r.PrinterIP, string(typ)); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,started_at,finished_at,input,output,backend,hosts,printers,failed
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Input, &r.Output, &r.Backend, &r.Hosts, &r.Printers, &r.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// Rows returns the report rows of a run in their original order.
func (s *Store) Rows(ctx context.Context, runID string) ([]inventory.ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT hostname,printer_name,printer_ip FROM printer_rows WHERE run_id=? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	defer rows.Close()
	var list []inventory.ReportRow
	for rows.Next() {
		var r inventory.ReportRow
		if err := rows.Scan(&r.Hostname, &r.PrinterName, &r.PrinterIP); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// TypeCounts tallies printer types recorded for a run.
func (s *Store) TypeCounts(ctx context.Context, runID string) (map[inventory.PrinterType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT printer_type, COUNT(*) FROM printer_rows WHERE run_id=? GROUP BY printer_type`, runID)
	if err != nil {
		return nil, fmt.Errorf("count printer types: %w", err)
	}
	defer rows.Close()
	counts := map[inventory.PrinterType]int{}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan printer type: %w", err)
		}
		counts[inventory.PrinterType(typ)] = n
	}
	return counts, rows.Err()
}

// timeLayout is fixed width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse history time %q: %w", v, err)
	}
	return t, nil
}
