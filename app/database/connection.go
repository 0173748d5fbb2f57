package database

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection pool shared by all repositories
type DB struct {
	*sql.DB
}

// NewConnection opens the SQLite database at path and verifies it is reachable
func NewConnection(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=%s&_pragma=%s&_pragma=%s",
		path,
		url.QueryEscape("foreign_keys(1)"),
		url.QueryEscape("busy_timeout(5000)"),
		url.QueryEscape("journal_mode(WAL)"))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite permits a single writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}
