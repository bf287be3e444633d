// Package index provides a SQLite-backed commit cache with optional FTS5
// search over commit messages.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS repos (
	repo       TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT 'snapshot',
	path       TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	fetched_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS branches (
	repo     TEXT NOT NULL,
	name     TEXT NOT NULL,
	sha      TEXT NOT NULL DEFAULT '',
	date     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	PRIMARY KEY (repo, name)
);

CREATE TABLE IF NOT EXISTS commits (
	repo     TEXT NOT NULL,
	lane     TEXT NOT NULL DEFAULT '',
	position INTEGER NOT NULL,
	sha      TEXT NOT NULL,
	message  TEXT NOT NULL DEFAULT '',
	author   TEXT NOT NULL DEFAULT '',
	date     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (repo, lane, position)
);

CREATE INDEX IF NOT EXISTS idx_repos_path ON repos(path);
CREATE INDEX IF NOT EXISTS idx_commits_sha ON commits(repo, sha);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
