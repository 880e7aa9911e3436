package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docfill/internal/models"
)

// DefaultListLimit applies when ListRuns is called with a non-positive limit.
const DefaultListLimit = 50

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		template_name TEXT NOT NULL,
		template_path TEXT,
		template_hash TEXT NOT NULL,
		format TEXT NOT NULL,
		output_path TEXT NOT NULL,
		placeholders TEXT,
		unresolved TEXT,
		bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_template_hash ON runs(template_hash);
	`
	_, err := db.Exec(schema)
	return err
}

const runColumns = `id, template_name, template_path, template_hash, format, output_path,
	placeholders, unresolved, bytes, duration_ms, created_at`

// RecordRun inserts a run. CreatedAt is set when zero.
func (s *SQLiteJournal) RecordRun(ctx context.Context, run *models.RunRecord) error {
	placeholders, err := json.Marshal(nonNil(run.Placeholders))
	if err != nil {
		return fmt.Errorf("failed to marshal placeholders: %w", err)
	}
	unresolved, err := json.Marshal(nonNil(run.UnresolvedValues))
	if err != nil {
		return fmt.Errorf("failed to marshal unresolved placeholders: %w", err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TemplateName, run.TemplatePath, run.TemplateHash, string(run.Format), run.OutputPath,
		string(placeholders), string(unresolved), run.Bytes, run.DurationMillis, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run by ID, or ErrRunNotFound.
func (s *SQLiteJournal) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs newest first with offset and limit.
func (s *SQLiteJournal) ListRuns(ctx context.Context, offset, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*models.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of journaled runs.
func (s *SQLiteJournal) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*models.RunRecord, error) {
	var (
		run                      models.RunRecord
		format                   string
		path                     sql.NullString
		placeholders, unresolved sql.NullString
	)
	err := sc.Scan(&run.ID, &run.TemplateName, &path, &run.TemplateHash, &format, &run.OutputPath,
		&placeholders, &unresolved, &run.Bytes, &run.DurationMillis, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	run.TemplatePath = path.String
	run.Format = models.OutputFormat(format)
	if placeholders.String != "" {
		if err := json.Unmarshal([]byte(placeholders.String), &run.Placeholders); err != nil {
			return nil, fmt.Errorf("failed to unmarshal placeholders: %w", err)
		}
	}
	if unresolved.String != "" {
		if err := json.Unmarshal([]byte(unresolved.String), &run.UnresolvedValues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal unresolved placeholders: %w", err)
		}
	}
	return &run, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
