// Package db owns the Postgres connection for the ledger store: open,
// verify, apply goose migrations, and bound the connection pool.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const defaultMigrationsDir = "migrations"

// Connect opens the ledger database and brings the schema up to date.
// An empty migrationsDir falls back to the repo-relative default.
func Connect(dsn, migrationsDir string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}

	if migrationsDir == "" {
		migrationsDir = defaultMigrationsDir
	}
	if err := goose.Up(conn, migrationsDir); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return conn, nil
}
