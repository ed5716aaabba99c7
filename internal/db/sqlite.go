package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/helixlabs/helix/internal/db/migrations"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Open creates a SQLite database connection, runs migrations, and returns
// a Store. The directory is created if missing.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection: SQLite doesn't handle concurrent writers well, so
	// all access is serialized through this one handle.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migrations.Run(conn); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Debug("sqlite store initialized", "path", path)
	return NewStore(conn), nil
}
