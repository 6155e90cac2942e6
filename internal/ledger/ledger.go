// Package ledger implements the embedded relational receipt store: one row
// per Provider call, enough to reconstruct cost, token usage, and outcome
// for every run without re-reading the run's log files.
//
// Grounded on the original source's core/receipt.py ReceiptDB: same
// SCHEMA_SQL shape, same dedup-by-existing-index-before-insert behavior,
// same index set. Ported from sqlite3 to modernc.org/sqlite (pure Go, no
// cgo) in WAL mode.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS receipts (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	response_id      TEXT,
	batch_id         TEXT,
	project          TEXT NOT NULL,
	mode             TEXT NOT NULL,
	step             TEXT NOT NULL,
	model            TEXT NOT NULL,
	input_tokens     INTEGER NOT NULL DEFAULT 0,
	output_tokens    INTEGER NOT NULL DEFAULT 0,
	cost_usd         REAL NOT NULL DEFAULT 0,
	cost_estimated   INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_receipts_run_id      ON receipts(run_id);
CREATE INDEX IF NOT EXISTS idx_receipts_response_id ON receipts(response_id);
CREATE INDEX IF NOT EXISTS idx_receipts_batch_id    ON receipts(batch_id);
CREATE INDEX IF NOT EXISTS idx_receipts_project     ON receipts(project);
CREATE INDEX IF NOT EXISTS idx_receipts_created_at  ON receipts(created_at);
`

// Receipt is one row of the ledger.
type Receipt struct {
	ID            int64
	RunID         string
	ResponseID    string
	BatchID       string
	Project       string
	Mode          string
	Step          string
	Model         string
	InputTokens   int64
	OutputTokens  int64
	CostUSD       float64
	CostEstimated bool
	Status        string
	CreatedAt     time.Time
}

// DB wraps the sqlite connection pool.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the sqlite file at path in WAL mode
// with a 10s busy timeout, matching the original ReceiptDB._connect pragmas.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: single writer, matches the original's serialized access
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ensure schema: %w", err)
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error { return d.sql.Close() }

// existingIndex looks up a prior receipt with the same (run_id, response_id,
// step) before Insert, so retried chunk requests that re-emit the same
// response_id don't double-book cost.
func (d *DB) existingIndex(runID, responseID, step string) (int64, bool, error) {
	var id int64
	err := d.sql.QueryRow(
		`SELECT id FROM receipts WHERE run_id = ? AND response_id = ? AND step = ? LIMIT 1`,
		runID, responseID, step,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// Insert records r, skipping (and returning the existing id) if a receipt
// with the same run_id/response_id/step already exists.
func (d *DB) Insert(r Receipt) (int64, error) {
	if r.ResponseID != "" {
		if id, ok, err := d.existingIndex(r.RunID, r.ResponseID, r.Step); err != nil {
			return 0, err
		} else if ok {
			return id, nil
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	res, err := d.sql.Exec(
		`INSERT INTO receipts (run_id, response_id, batch_id, project, mode, step, model,
			input_tokens, output_tokens, cost_usd, cost_estimated, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.ResponseID, r.BatchID, r.Project, r.Mode, r.Step, r.Model,
		r.InputTokens, r.OutputTokens, r.CostUSD, boolToInt(r.CostEstimated), r.Status,
		r.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("ledger: insert: %w", err)
	}
	return res.LastInsertId()
}

// QueryByRun returns every receipt for runID, oldest first.
func (d *DB) QueryByRun(runID string) ([]Receipt, error) {
	rows, err := d.sql.Query(
		`SELECT id, run_id, response_id, batch_id, project, mode, step, model,
			input_tokens, output_tokens, cost_usd, cost_estimated, status, created_at
		 FROM receipts WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// QueryByProject returns every receipt for project, newest first, bounded by
// limit (0 means unbounded).
func (d *DB) QueryByProject(project string, limit int) ([]Receipt, error) {
	query := `SELECT id, run_id, response_id, batch_id, project, mode, step, model,
			input_tokens, output_tokens, cost_usd, cost_estimated, status, created_at
		 FROM receipts WHERE project = ? ORDER BY id DESC`
	args := []any{project}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()
	return scanReceipts(rows)
}

// DeleteRun removes every receipt for runID, used by the CLI's cleanup path.
func (d *DB) DeleteRun(runID string) (int64, error) {
	res, err := d.sql.Exec(`DELETE FROM receipts WHERE run_id = ?`, runID)
	if err != nil {
		return 0, fmt.Errorf("ledger: delete: %w", err)
	}
	return res.RowsAffected()
}

func scanReceipts(rows *sql.Rows) ([]Receipt, error) {
	var out []Receipt
	for rows.Next() {
		var r Receipt
		var createdAt string
		var costEstimated int
		if err := rows.Scan(&r.ID, &r.RunID, &r.ResponseID, &r.BatchID, &r.Project, &r.Mode, &r.Step, &r.Model,
			&r.InputTokens, &r.OutputTokens, &r.CostUSD, &costEstimated, &r.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		r.CostEstimated = costEstimated != 0
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
