// Package duckdb exports built gene hierarchies and their comparison events
// to DuckDB so they can be queried with SQL. Every export is stamped with a
// run id; one database can hold several runs.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding exported hierarchies.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR PRIMARY KEY,
			tree_path VARCHAR,
			tree_size BIGINT,
			tree_modtime TIMESTAMP,
			orthoxml_path VARCHAR,
			orthoxml_size BIGINT,
			orthoxml_modtime TIMESTAMP,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hogs (
			run_id VARCHAR,
			hog_key VARCHAR,
			hog_id VARCHAR,
			level VARCHAR,
			parent_key VARCHAR,
			family VARCHAR,
			duplication_level VARCHAR,
			n_genes BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS genes (
			run_id VARCHAR,
			gene_id VARCHAR,
			species VARCHAR,
			tax_id VARCHAR,
			prot_id VARCHAR,
			gene_xref VARCHAR,
			transcript_id VARCHAR,
			parent_key VARCHAR,
			family VARCHAR,
			duplication_level VARCHAR,
			PRIMARY KEY (run_id, gene_id)
		)`,
		`CREATE TABLE IF NOT EXISTS run_comparisons (
			run_id VARCHAR,
			ancestor VARCHAR,
			descendant VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS comparison_events (
			run_id VARCHAR,
			ancestor VARCHAR,
			descendant VARCHAR,
			event VARCHAR,
			ancestral_hog VARCHAR,
			descendant_gene VARCHAR
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
