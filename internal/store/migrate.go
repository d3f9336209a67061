package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Migrate runs all .sql files in the migrations directory in order
func (s *Store) Migrate(migrationsDir string) error {
	_, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			migrationFiles = append(migrationFiles, f.Name())
		}
	}
	sort.Strings(migrationFiles) // Ensure order 001, 002, ...

	for _, file := range migrationFiles {
		if isApplied(s.DB, file) {
			slog.Info("Skipping already applied migration", "file", file)
			continue
		}

		slog.Info("Applying migration", "file", file)
		content, err := os.ReadFile(filepath.Join(migrationsDir, file))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		tx, err := s.DB.Begin()
		if err != nil {
			return err
		}

		if _, err := tx.Exec(string(content)); err != nil {
			// Re-running an ALTER on an existing column is the one
			// failure we tolerate: record the version and move on.
			if strings.Contains(err.Error(), "duplicate column name") {
				slog.Warn("Column likely already exists, marking as applied", "file", file)
				tx.Rollback()
			} else {
				tx.Rollback()
				return fmt.Errorf("failed to execute migration %s: %w", file, err)
			}
		} else {
			if err := tx.Commit(); err != nil {
				return err
			}
		}

		if _, err := s.DB.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, file); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", file, err)
		}
	}

	return nil
}

func isApplied(db *sql.DB, version string) bool {
	var exists int
	err := db.QueryRow(`SELECT 1 FROM schema_migrations WHERE version = ?`, version).Scan(&exists)
	return err == nil
}
