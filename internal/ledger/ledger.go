// Package ledger keeps a SQLite history of extraction runs and the outcome of every image.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sensorable/foodset"
)

// FileName is the database file name inside the ledger directory.
const FileName = "foodset.db"

// Ledger stores run summaries.
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Run is a stored run.
type Run struct {
	ID          int64
	Split       string
	Started     time.Time
	Finished    time.Time
	Selected    int
	Written     int
	Interrupted bool
}

// Item is a stored per-image result.
type Item struct {
	ImageID  int
	FileName string
	Category string
	Outcome  string
	Error    string
}

// Open opens or creates the ledger in dir.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrap(err, "failed to create ledger directory")
	}

	dbPath := filepath.Join(dir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open ledger")
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, dbPath: dbPath}
	if err := l.createTables(context.Background()); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "failed to create tables"), db.Close())
	}
	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		split TEXT NOT NULL,
		started DATETIME NOT NULL,
		finished DATETIME NOT NULL,
		selected INTEGER NOT NULL,
		written INTEGER NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS items (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		image_id INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		category TEXT,
		outcome TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);
	`
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// RecordRun stores the summary and all of its items in one transaction. Returns the run ID.
func (l *Ledger) RecordRun(ctx context.Context, split string, s *foodset.Summary) (id int64, err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, tx.Rollback())
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (split, started, finished, selected, written, interrupted)
		VALUES (?, ?, ?, ?, ?, ?)`,
		split, s.Started.UTC(), s.Finished.UTC(), len(s.Items), s.Count(foodset.Written),
		s.Interrupted)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert run")
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, errors.Wrap(err, "failed to read run id")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (run_id, image_id, file_name, category, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, errors.Wrap(err, "failed to prepare item insert")
	}
	defer func() { err = multierr.Combine(err, stmt.Close()) }()

	for _, r := range s.Items {
		var errText sql.NullString
		if r.Err != nil {
			errText = sql.NullString{String: r.Err.Error(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, id, r.ImageID, r.FileName, r.Category,
			r.Outcome.String(), errText); err != nil {
			return 0, errors.Wrapf(err, "failed to insert item %q", r.FileName)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit run")
	}
	return id, nil
}

// Runs returns up to limit runs, newest first. A non-positive limit returns all runs.
func (l *Ledger) Runs(ctx context.Context, limit int) (runs []Run, err error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, split, started, finished, selected, written, interrupted
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query runs")
	}
	defer func() { err = multierr.Combine(err, rows.Close()) }()

	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Split, &r.Started, &r.Finished, &r.Selected, &r.Written,
			&r.Interrupted); err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Items returns the items of the run in processing order.
func (l *Ledger) Items(ctx context.Context, runID int64) (items []Item, err error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT image_id, file_name, category, outcome, error
		FROM items WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query items")
	}
	defer func() { err = multierr.Combine(err, rows.Close()) }()

	for rows.Next() {
		var it Item
		var category, errText sql.NullString
		if err := rows.Scan(&it.ImageID, &it.FileName, &category, &it.Outcome, &errText); err != nil {
			return nil, errors.Wrap(err, "failed to scan item")
		}
		it.Category = category.String
		it.Error = errText.String
		items = append(items, it)
	}
	return items, rows.Err()
}
