// Package testutil provides shared test helpers for snapshot directories,
// databases, and fixture histories.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/commitquest/internal/index"
	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "commitquest-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSnapshots creates a temporary snapshot directory with a storage.Provider.
func TestSnapshots(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFile writes body to rel under dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, body string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Day returns noon UTC on the given day of March 2024.
func Day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

// History returns a three-commit main timeline (c3, c2, c1 on days 3..1)
// and one feature branch whose single commit lands between c3 and c2.
func History() ([]models.Commit, []models.Branch) {
	main := []models.Commit{
		{SHA: "c3", Message: "add leaderboard", Author: "ana", Date: Day(3)},
		{SHA: "c2", Message: "fix streak reset", Author: "bo", Date: Day(2)},
		{SHA: "c1", Message: "initial commit", Author: "ana", Date: Day(1)},
	}
	feature := models.Branch{
		Name: "feature/xp",
		SHA:  "f1",
		Date: Day(2).Add(12 * time.Hour),
		Commits: []models.Commit{
			{SHA: "f1", Message: "xp multiplier", Author: "cy", Date: Day(2).Add(12 * time.Hour)},
		},
	}
	return main, []models.Branch{{Name: "main", SHA: "c3", Date: Day(3)}, feature}
}

// SnapshotJSON is a snapshot document equivalent to History.
const SnapshotJSON = `{
  "main": [
    {"sha": "c3", "message": "add leaderboard", "author": "ana", "date": "2024-03-03T12:00:00Z"},
    {"sha": "c2", "message": "fix streak reset", "author": "bo", "date": "2024-03-02T12:00:00Z"},
    {"sha": "c1", "message": "initial commit", "author": "ana", "date": "2024-03-01T12:00:00Z"}
  ],
  "branches": [
    {"name": "main", "sha": "c3", "date": "2024-03-03T12:00:00Z", "commits": []},
    {"name": "feature/xp", "commits": [
      {"sha": "f1", "message": "xp multiplier", "author": "cy", "date": "2024-03-03T00:00:00Z"}
    ]}
  ]
}`
