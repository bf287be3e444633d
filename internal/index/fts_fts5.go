//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/commitquest/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS commits_fts USING fts5(
			repo UNINDEXED,
			sha UNINDEXED,
			date UNINDEXED,
			message,
			author,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, repo string, c models.Commit) error {
	_, err := tx.Exec(`INSERT INTO commits_fts (repo, sha, date, message, author) VALUES (?, ?, ?, ?, ?)`,
		repo, c.SHA, formatTime(c.Date), c.Message, c.Author)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, repo string) error {
	if _, err := tx.Exec(`DELETE FROM commits_fts WHERE repo = ?`, repo); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// SearchCommits performs an FTS5 full-text search over commit messages and authors.
func (db *DB) SearchCommits(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT repo, sha, message, author, date, min(rank) AS best
		FROM commits_fts
		WHERE commits_fts MATCH ?
		GROUP BY repo, sha
		ORDER BY best
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var date string
		var best float64
		if err := rows.Scan(&r.Repo, &r.SHA, &r.Message, &r.Author, &date, &best); err != nil {
			return nil, err
		}
		r.Date = parseTime(date)
		out = append(out, r)
	}
	return out, rows.Err()
}
