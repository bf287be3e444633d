//go:build sqlite_fts5

package index

import (
	"testing"
	"time"

	"github.com/starford/commitquest/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM commits_fts`).Scan(&count); err != nil {
		t.Fatalf("commits_fts table missing: %v", err)
	}
}

func TestFTS5_SearchDeduplicatesLanes(t *testing.T) {
	db := testDB(t)
	shared := models.Commit{SHA: "s1", Message: "introduce powerful caching", Author: "ana", Date: time.Now()}
	snap := &models.Snapshot{
		Main:     []models.Commit{shared},
		Branches: []models.Branch{{Name: "feat", SHA: "s1", Commits: []models.Commit{shared}}},
	}
	if err := db.UpsertSnapshot(RepoRow{Repo: "octo/a", Source: models.SourceSnapshot}, snap); err != nil {
		t.Fatalf("UpsertSnapshot: %v", err)
	}

	results, err := db.SearchCommits("powerful", 10)
	if err != nil {
		t.Fatalf("SearchCommits: %v", err)
	}
	if len(results) != 1 || results[0].SHA != "s1" {
		t.Fatalf("results = %+v, want single s1 hit", results)
	}
}

func TestFTS5_DeleteRemovesEntries(t *testing.T) {
	db := testDB(t)
	snap := &models.Snapshot{Main: []models.Commit{{SHA: "x", Message: "ephemeral change", Date: time.Now()}}}
	_ = db.UpsertSnapshot(RepoRow{Repo: "octo/b", Source: models.SourceSnapshot}, snap)
	if err := db.DeleteRepo("octo/b"); err != nil {
		t.Fatalf("DeleteRepo: %v", err)
	}
	results, _ := db.SearchCommits("ephemeral", 10)
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}
