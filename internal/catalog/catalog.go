// Package catalog records runs and the images they extracted in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	mode             TEXT NOT NULL,
	config_path      TEXT NOT NULL,
	backup_path      TEXT NOT NULL DEFAULT '',
	items_cleaned    INTEGER NOT NULL DEFAULT 0,
	images_extracted INTEGER NOT NULL DEFAULT 0,
	removed_bytes    INTEGER NOT NULL DEFAULT 0,
	original_size    INTEGER NOT NULL DEFAULT 0,
	final_size       INTEGER NOT NULL DEFAULT 0,
	started_at       DATETIME NOT NULL,
	finished_at      DATETIME,
	error            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS images (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	project  TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	path     TEXT NOT NULL,
	format   TEXT NOT NULL DEFAULT '',
	size     INTEGER NOT NULL DEFAULT 0,
	checksum TEXT NOT NULL DEFAULT '',
	UNIQUE(run_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_images_run ON images(run_id);
`

// Recorder is the write side used while a run is in progress.
type Recorder interface {
	BeginRun(ctx context.Context, r models.Run) error
	AddImage(ctx context.Context, img models.Image) error
	FinishRun(ctx context.Context, r models.Run) error
}

// Reader is the query side used by listing and the HTTP browser.
type Reader interface {
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)
	GetRun(ctx context.Context, id string) (models.Run, error)
	RunImages(ctx context.Context, runID string) ([]models.Image, error)
}

// Verify *DB satisfies both sides at compile time.
var (
	_ Recorder = (*DB)(nil)
	_ Reader   = (*DB)(nil)
)

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BeginRun inserts a run row with its start time.
func (db *DB) BeginRun(ctx context.Context, r models.Run) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO runs (id, mode, config_path, backup_path, original_size, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Mode, r.ConfigPath, r.BackupPath, r.OriginalSize, r.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("catalog: begin run: %w", err)
	}
	return nil
}

// AddImage records one extracted file.
func (db *DB) AddImage(ctx context.Context, img models.Image) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO images (run_id, project, sequence, path, format, size, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, img.RunID, img.Project, img.Sequence, img.Path, img.Format, img.Size, img.Checksum)
	if err != nil {
		return fmt.Errorf("catalog: add image: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run and its error, if any.
func (db *DB) FinishRun(ctx context.Context, r models.Run) error {
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE runs SET
			backup_path      = ?,
			items_cleaned    = ?,
			images_extracted = ?,
			removed_bytes    = ?,
			final_size       = ?,
			finished_at      = ?,
			error            = ?
		WHERE id = ?
	`, r.BackupPath, r.ItemsCleaned, r.ImagesExtracted, r.RemovedBytes, r.FinalSize, finished.UTC(), r.Error, r.ID)
	if err != nil {
		return fmt.Errorf("catalog: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("catalog: finish run %s: %w", r.ID, apperr.ErrNotFound)
	}
	return nil
}

const runColumns = `id, mode, config_path, backup_path, items_cleaned, images_extracted,
	removed_bytes, original_size, final_size, started_at, finished_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (models.Run, error) {
	var (
		r        models.Run
		finished sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Mode, &r.ConfigPath, &r.BackupPath, &r.ItemsCleaned, &r.ImagesExtracted,
		&r.RemovedBytes, &r.OriginalSize, &r.FinalSize, &r.StartedAt, &finished, &r.Error)
	if err != nil {
		return models.Run{}, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit means 20.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run, or an error wrapping apperr.ErrNotFound.
func (db *DB) GetRun(ctx context.Context, id string) (models.Run, error) {
	r, err := scanRun(db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("catalog: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Run{}, fmt.Errorf("catalog: get run: %w", err)
	}
	return r, nil
}

// RunImages returns the images of a run in extraction order.
func (db *DB) RunImages(ctx context.Context, runID string) ([]models.Image, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, project, sequence, path, format, size, checksum
		FROM images WHERE run_id = ? ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("catalog: run images: %w", err)
	}
	defer rows.Close()

	var out []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.RunID, &img.Project, &img.Sequence, &img.Path, &img.Format, &img.Size, &img.Checksum); err != nil {
			return nil, fmt.Errorf("catalog: scan image: %w", err)
		}
		out = append(out, img)
	}
	return out, rows.Err()
}
