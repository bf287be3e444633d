package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/models"
)

// RepoRow represents a row in the repos table. Path is the snapshot file
// that produced the repo, empty for GitHub-sourced repos.
type RepoRow struct {
	Repo      string
	Source    string
	Path      string
	Checksum  string
	FetchedAt time.Time
}

// SearchResult represents one commit search hit.
type SearchResult struct {
	Repo    string    `json:"repo"`
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

const mainLane = ""

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// UpsertSnapshot replaces everything stored for row.Repo with snap in one
// transaction.
func (db *DB) UpsertSnapshot(row RepoRow, snap *models.Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO repos (repo, source, path, checksum, fetched_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo) DO UPDATE SET
			source     = excluded.source,
			path       = excluded.path,
			checksum   = excluded.checksum,
			fetched_at = excluded.fetched_at
	`, row.Repo, row.Source, row.Path, row.Checksum, formatTime(row.FetchedAt))
	if err != nil {
		return fmt.Errorf("index: upsert repo: %w", err)
	}

	if err := clearRepo(tx, row.Repo); err != nil {
		return err
	}

	commitStmt, err := tx.Prepare(`INSERT INTO commits (repo, lane, position, sha, message, author, date) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare commit insert: %w", err)
	}
	defer commitStmt.Close()

	insertLane := func(lane string, commits []models.Commit) error {
		for i, c := range commits {
			if _, err := commitStmt.Exec(row.Repo, lane, i, c.SHA, c.Message, c.Author, formatTime(c.Date)); err != nil {
				return fmt.Errorf("index: insert commit: %w", err)
			}
			if err := ftsUpsert(tx, row.Repo, c); err != nil {
				return err
			}
		}
		return nil
	}

	if err := insertLane(mainLane, snap.Main); err != nil {
		return err
	}
	for i, b := range uniqueBranches(snap.Branches) {
		_, err := tx.Exec(`INSERT OR REPLACE INTO branches (repo, name, sha, date, position) VALUES (?, ?, ?, ?, ?)`,
			row.Repo, b.Name, b.SHA, formatTime(b.Date), i)
		if err != nil {
			return fmt.Errorf("index: insert branch: %w", err)
		}
		if err := insertLane(b.Name, b.Commits); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// uniqueBranches drops unnamed branches and every repeat of a name after its
// first occurrence.
func uniqueBranches(branches []models.Branch) []models.Branch {
	seen := make(map[string]struct{}, len(branches))
	out := make([]models.Branch, 0, len(branches))
	for _, b := range branches {
		if b.Name == mainLane {
			continue
		}
		if _, dup := seen[b.Name]; dup {
			continue
		}
		seen[b.Name] = struct{}{}
		out = append(out, b)
	}
	return out
}

func clearRepo(tx *sql.Tx, repo string) error {
	if err := ftsDelete(tx, repo); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM commits WHERE repo = ?`, repo); err != nil {
		return fmt.Errorf("index: clear commits: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM branches WHERE repo = ?`, repo); err != nil {
		return fmt.Errorf("index: clear branches: %w", err)
	}
	return nil
}

// DeleteRepo removes a repo with its commits and branches.
func (db *DB) DeleteRepo(repo string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := clearRepo(tx, repo); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM repos WHERE repo = ?`, repo); err != nil {
		return fmt.Errorf("index: delete repo: %w", err)
	}
	return tx.Commit()
}

// DeleteByPath removes the repo produced by the snapshot file at path and
// returns its key, or "" when no repo came from that path.
func (db *DB) DeleteByPath(path string) (string, error) {
	var repo string
	err := db.conn.QueryRow(`SELECT repo FROM repos WHERE path = ? AND path != ''`, path).Scan(&repo)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: lookup path: %w", err)
	}
	return repo, db.DeleteRepo(repo)
}

// GetRepo returns the repo row, or apperr.ErrNotFound.
func (db *DB) GetRepo(repo string) (*RepoRow, error) {
	var r RepoRow
	var fetched string
	err := db.conn.QueryRow(`SELECT repo, source, path, checksum, fetched_at FROM repos WHERE repo = ?`, repo).
		Scan(&r.Repo, &r.Source, &r.Path, &r.Checksum, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get repo: %w", err)
	}
	r.FetchedAt = parseTime(fetched)
	return &r, nil
}

// ListRepos returns every cached repo ordered by key.
func (db *DB) ListRepos() ([]RepoRow, error) {
	rows, err := db.conn.Query(`SELECT repo, source, path, checksum, fetched_at FROM repos ORDER BY repo`)
	if err != nil {
		return nil, fmt.Errorf("index: list repos: %w", err)
	}
	defer rows.Close()

	var out []RepoRow
	for rows.Next() {
		var r RepoRow
		var fetched string
		if err := rows.Scan(&r.Repo, &r.Source, &r.Path, &r.Checksum, &fetched); err != nil {
			return nil, err
		}
		r.FetchedAt = parseTime(fetched)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshot reassembles the cached history of repo, or apperr.ErrNotFound.
func (db *DB) Snapshot(repo string) (*models.Snapshot, error) {
	row, err := db.GetRepo(repo)
	if err != nil {
		return nil, err
	}
	snap := &models.Snapshot{
		Repo:      row.Repo,
		Source:    row.Source,
		Main:      []models.Commit{},
		Branches:  []models.Branch{},
		FetchedAt: row.FetchedAt,
	}

	brRows, err := db.conn.Query(`SELECT name, sha, date FROM branches WHERE repo = ? ORDER BY position`, repo)
	if err != nil {
		return nil, fmt.Errorf("index: branches: %w", err)
	}
	lanes := map[string]int{}
	for brRows.Next() {
		var b models.Branch
		var date string
		if err := brRows.Scan(&b.Name, &b.SHA, &date); err != nil {
			brRows.Close()
			return nil, err
		}
		b.Date = parseTime(date)
		b.Commits = []models.Commit{}
		lanes[b.Name] = len(snap.Branches)
		snap.Branches = append(snap.Branches, b)
	}
	brRows.Close()
	if err := brRows.Err(); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`SELECT lane, sha, message, author, date FROM commits WHERE repo = ? ORDER BY lane, position`, repo)
	if err != nil {
		return nil, fmt.Errorf("index: commits: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lane, date string
		var c models.Commit
		if err := rows.Scan(&lane, &c.SHA, &c.Message, &c.Author, &date); err != nil {
			return nil, err
		}
		c.Date = parseTime(date)
		if lane == mainLane {
			snap.Main = append(snap.Main, c)
			continue
		}
		if i, ok := lanes[lane]; ok {
			snap.Branches[i].Commits = append(snap.Branches[i].Commits, c)
		}
	}
	return snap, rows.Err()
}

// GetChecksum returns the stored checksum for a snapshot path, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM repos WHERE path = ? AND path != ''`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every snapshot-sourced repo.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM repos WHERE path != ''`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
