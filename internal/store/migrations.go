package store

import "fmt"

// migrations are applied in order. The index of the last applied entry plus
// one is kept in PRAGMA user_version; append new steps, never edit old ones.
var migrations = []string{
	// 1: free-text feedback submitted from the viewer
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		message TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at)`,

	// 2: frames archived as misclassified
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		emotion TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_emotion ON reports(emotion);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,

	// 3: key-value application settings
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// SchemaVersion returns the number of migrations applied to the database.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// runMigrations applies every migration newer than the stored schema version,
// each in its own transaction.
func (s *Store) runMigrations() error {
	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than supported %d", current, len(migrations))
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bind parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}

	return nil
}
