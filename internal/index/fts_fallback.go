//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/commitquest/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the commits table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ models.Commit) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// SearchCommits performs a LIKE-based search over commit messages and
// authors (fallback when FTS5 is not compiled in).
func (db *DB) SearchCommits(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT DISTINCT repo, sha, message, author, date
		FROM commits
		WHERE message LIKE ? OR author LIKE ? OR sha LIKE ?
		ORDER BY date DESC
		LIMIT ?
	`, like, like, query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var date string
		if err := rows.Scan(&r.Repo, &r.SHA, &r.Message, &r.Author, &date); err != nil {
			return nil, err
		}
		r.Date = parseTime(date)
		out = append(out, r)
	}
	return out, rows.Err()
}
