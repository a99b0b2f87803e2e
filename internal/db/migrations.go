package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations holds the schema steps in order. Step i moves the database from
// user_version i to i+1. Append new steps at the end; never edit old ones.
var migrations = [][]string{
	// Version 1: the item table.
	{
		`CREATE TABLE IF NOT EXISTS items (
		    id          INTEGER PRIMARY KEY AUTOINCREMENT,
		    name        TEXT NOT NULL,
		    description TEXT NOT NULL,
		    type        TEXT NOT NULL
		)`,
	},
	// Version 2: item photos and API accounts.
	{
		`ALTER TABLE items ADD COLUMN image BLOB`,
		`ALTER TABLE items ADD COLUMN image_mime TEXT`,
		`CREATE TABLE IF NOT EXISTS users (
		    id            INTEGER PRIMARY KEY,
		    username      TEXT NOT NULL UNIQUE,
		    password_hash TEXT NOT NULL,
		    role          TEXT NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'editor', 'viewer')),
		    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
		    key   TEXT PRIMARY KEY,
		    value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS revoked_tokens (
		    jti        TEXT PRIMARY KEY,
		    expires_at DATETIME NOT NULL
		)`,
	},
}

// LatestVersion is the schema version Migrate brings a database to.
var LatestVersion = len(migrations)

// SchemaVersion returns the database's user_version.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every pending migration step. Each step runs in its own
// transaction together with the version bump, so a failed step leaves the
// database at the previous version.
func Migrate(db *sql.DB) error {
	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current > LatestVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, LatestVersion)
	}

	ctx := context.Background()
	for v := current; v < LatestVersion; v++ {
		if err := applyStep(ctx, db, v+1, migrations[v]); err != nil {
			return err
		}
	}
	return nil
}

func applyStep(ctx context.Context, db *sql.DB, version int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", version, err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration %d: %w", version, err)
		}
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("setting schema version %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", version, err)
	}
	return nil
}
