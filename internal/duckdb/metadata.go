package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Run describes one export.
type Run struct {
	ID        string
	Tree      FileFingerprint
	OrthoXML  FileFingerprint
	CreatedAt time.Time
}

// ts truncates to the TIMESTAMP resolution so stored values compare equal.
func ts(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }

// NewRunID returns a fresh run id.
func NewRunID() string { return uuid.NewString() }

// WriteRun records the inputs of the export stored under id. It is written
// last, so FindRun only sees complete exports.
func (s *Store) WriteRun(id string, tree, orthoxml FileFingerprint) error {
	_, err := s.db.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		tree.Path, tree.Size, ts(tree.ModTime),
		orthoxml.Path, orthoxml.Size, ts(orthoxml.ModTime),
		ts(time.Now()))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FindRun returns the most recent run exported from input files with the same
// size and modification time, or ok=false.
func (s *Store) FindRun(tree, orthoxml FileFingerprint) (id string, ok bool, err error) {
	row := s.db.QueryRow(`SELECT run_id FROM runs
		WHERE tree_size=? AND tree_modtime=? AND orthoxml_size=? AND orthoxml_modtime=?
		ORDER BY created_at DESC LIMIT 1`,
		tree.Size, ts(tree.ModTime), orthoxml.Size, ts(orthoxml.ModTime))
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("query run: %w", err)
	}
	return id, true, nil
}

// Runs lists every recorded export, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id,
		tree_path, tree_size, tree_modtime,
		orthoxml_path, orthoxml_size, orthoxml_modtime,
		created_at
		FROM runs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID,
			&r.Tree.Path, &r.Tree.Size, &r.Tree.ModTime,
			&r.OrthoXML.Path, &r.OrthoXML.Size, &r.OrthoXML.ModTime,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and everything exported under it.
func (s *Store) DeleteRun(id string) error {
	for _, table := range []string{"comparison_events", "run_comparisons", "genes", "hogs", "runs"} {
		if _, err := s.db.Exec("DELETE FROM "+table+" WHERE run_id=?", id); err != nil {
			return fmt.Errorf("delete run from %s: %w", table, err)
		}
	}
	return nil
}
