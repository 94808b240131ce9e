// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history persists conversion outcomes in a SQLite database, so
// "markvault history" can answer what was converted, by which backend, and
// how it went. Recording is best-effort; the pipeline never fails a
// conversion over a history error.
package history

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/mhoffm/markvault/pkg/types"
)

const dbFile = "markvault.db"

// Store manages the conversion history SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at dir/markvault.db, creating
// the schema if it does not exist.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS conversions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_path TEXT NOT NULL,
		backend TEXT NOT NULL,
		status TEXT NOT NULL,
		markdown_path TEXT,
		image_count INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("executing schema statement: %w", err)
	}
	return nil
}

// Record inserts one conversion outcome. A zero CreatedAt is filled with the
// current time.
func (s *Store) Record(rec types.Record) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO conversions (source_path, backend, status, markdown_path, image_count, duration_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SourcePath, string(rec.Backend), string(rec.Status), rec.MarkdownPath,
		rec.ImageCount, rec.Duration.Milliseconds(), rec.Error,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting conversion record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *Store) Recent(limit int) ([]types.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, source_path, backend, status, markdown_path, image_count, duration_ms, error, created_at
		 FROM conversions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying conversion records: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var rec types.Record
		var backend, status, createdAt string
		var durationMS int64
		if err := rows.Scan(&rec.ID, &rec.SourcePath, &backend, &status,
			&rec.MarkdownPath, &rec.ImageCount, &durationMS, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning conversion record: %w", err)
		}
		rec.Backend = types.BackendID(backend)
		rec.Status = types.RecordStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ExportYAML writes the most recent records to w as a YAML document.
func (s *Store) ExportYAML(w io.Writer, limit int) error {
	records, err := s.Recent(limit)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding history export: %w", err)
	}
	return nil
}
