// Package storage persists the preprocessed dataset and training runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/crimson-sun/repairclass/internal/model"
)

// ErrInvalidInput is returned for arguments that fail validation.
var ErrInvalidInput = errors.New("storage: invalid input")

// ProcessedRecord is a repair record after field normalization, code
// assignment and text cleaning.
type ProcessedRecord struct {
	Row          int
	Symptom      string
	Fault        string
	Text         string
	Codes        [model.NumFields]int
	Category     string
	CategoryCode int
}

// Run summarises one training run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Samples    int
	Classes    int
	Epochs     int
	BestEpoch  int
	BestLoss   float64
	FinalLoss  float64
}

// SQLiteStorage stores the processed table, code books and run history.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies the schema.
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("%w: empty database path", ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't benefit from multiple connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &SQLiteStorage{db: db, dbPath: dbPath}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

func codeColumns() []string {
	cols := make([]string, len(model.CategoricalFields))
	for i, f := range model.CategoricalFields {
		cols[i] = f.String()
	}
	return cols
}

func (s *SQLiteStorage) migrate(ctx context.Context) error {
	var defs strings.Builder
	for _, c := range codeColumns() {
		fmt.Fprintf(&defs, "%s INTEGER NOT NULL,\n", c)
	}
	queries := []string{
		`CREATE TABLE IF NOT EXISTS repair_records_processed (
			row INTEGER PRIMARY KEY,
			symptom TEXT NOT NULL,
			fault TEXT NOT NULL,
			cleaned_text TEXT NOT NULL,
			` + defs.String() + `
			category TEXT NOT NULL,
			category_code INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processed_category ON repair_records_processed(category_code)`,
		`CREATE TABLE IF NOT EXISTS code_books (
			field TEXT NOT NULL,
			code INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (field, code)
		)`,
		`CREATE TABLE IF NOT EXISTS training_runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			samples INTEGER NOT NULL,
			classes INTEGER NOT NULL,
			epochs INTEGER NOT NULL,
			best_epoch INTEGER NOT NULL,
			best_loss REAL NOT NULL,
			final_loss REAL NOT NULL
		)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SaveProcessed replaces the processed table and code books in one transaction.
// codeBooks maps a field name to its values ordered by code.
func (s *SQLiteStorage) SaveProcessed(ctx context.Context, records []ProcessedRecord, codeBooks map[string][]string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{`DELETE FROM repair_records_processed`, `DELETE FROM code_books`} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}
	}

	cols := append([]string{"row", "symptom", "fault", "cleaned_text"}, codeColumns()...)
	cols = append(cols, "category", "category_code")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO repair_records_processed (%s) VALUES (%s)`, strings.Join(cols, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, 0, len(cols))
	for _, r := range records {
		args = append(args[:0], r.Row, r.Symptom, r.Fault, r.Text)
		for _, f := range model.CategoricalFields {
			args = append(args, r.Codes[f])
		}
		args = append(args, r.Category, r.CategoryCode)
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", r.Row, err)
		}
	}

	bookStmt, err := tx.PrepareContext(ctx, `INSERT INTO code_books (field, code, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare code book insert: %w", err)
	}
	defer bookStmt.Close()
	for field, values := range codeBooks {
		for code, v := range values {
			if _, err = bookStmt.ExecContext(ctx, field, code, v); err != nil {
				return fmt.Errorf("failed to insert code book %s: %w", field, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// LoadProcessed returns the processed table ordered by row.
func (s *SQLiteStorage) LoadProcessed(ctx context.Context) ([]ProcessedRecord, error) {
	cols := append([]string{"row", "symptom", "fault", "cleaned_text"}, codeColumns()...)
	cols = append(cols, "category", "category_code")
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM repair_records_processed ORDER BY row`, strings.Join(cols, ", ")))
	if err != nil {
		return nil, fmt.Errorf("failed to query processed records: %w", err)
	}
	defer rows.Close()

	var out []ProcessedRecord
	for rows.Next() {
		var r ProcessedRecord
		dest := []any{&r.Row, &r.Symptom, &r.Fault, &r.Text}
		for _, f := range model.CategoricalFields {
			dest = append(dest, &r.Codes[f])
		}
		dest = append(dest, &r.Category, &r.CategoryCode)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan processed record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CodeBooks returns the stored code books keyed by field name.
func (s *SQLiteStorage) CodeBooks(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM code_books ORDER BY field, code`)
	if err != nil {
		return nil, fmt.Errorf("failed to query code books: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan code book: %w", err)
		}
		out[field] = append(out[field], value)
	}
	return out, rows.Err()
}

// SaveRun records a finished training run.
func (s *SQLiteStorage) SaveRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO training_runs (id, started_at, finished_at, samples, classes, epochs, best_epoch, best_loss, final_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Samples, r.Classes, r.Epochs, r.BestEpoch, r.BestLoss, r.FinalLoss)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns every recorded run, most recent first.
func (s *SQLiteStorage) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, samples, classes, epochs, best_epoch, best_loss, final_loss
		FROM training_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Samples, &r.Classes,
			&r.Epochs, &r.BestEpoch, &r.BestLoss, &r.FinalLoss); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
