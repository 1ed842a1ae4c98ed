package dbtools

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"toolgate/pkg/fileops"
)

// DemoSchema creates the sample users table.
const DemoSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT UNIQUE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// DemoUsers are inserted by SeedDatabase.
var DemoUsers = []struct {
	ID    int64
	Name  string
	Email string
}{
	{1, "Alice Johnson", "alice@example.com"},
	{2, "Bob Smith", "bob@example.com"},
	{3, "Charlie Brown", "charlie@example.com"},
}

// SeedDatabase creates the database file at path if needed and inserts the
// demo rows. Running it twice leaves the same three rows.
func SeedDatabase(ctx context.Context, path string) error {
	path = fileops.ExpandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open(DriverName, path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, DemoSchema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	for _, u := range DemoUsers {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO users (id, name, email) VALUES (?, ?, ?)", u.ID, u.Name, u.Email,
		); err != nil {
			return fmt.Errorf("failed to insert user %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit demo data: %w", err)
	}
	return nil
}
