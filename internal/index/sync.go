package index

import (
	"log/slog"
	"time"

	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/snapshot"
	"github.com/starford/commitquest/internal/storage"
)

// Sync walks the snapshot directory and brings the index up to date:
//   - new/changed snapshot files are parsed and upserted
//   - repos whose snapshot file disappeared are deleted from the index
//
// Invalid documents are logged and skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if repo, err := IndexFile(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path), slog.String("repo", repo))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if repo, err := db.DeleteByPath(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p), slog.String("repo", repo))
			}
		}
	}

	return nil
}

// IndexFile parses the snapshot document at path and upserts it. It returns
// the repo key.
func IndexFile(db *DB, path string, data []byte) (string, error) {
	snap, err := snapshot.Parse(data, snapshot.RepoKey(path))
	if err != nil {
		return "", err
	}
	row := RepoRow{
		Repo:      snap.Repo,
		Source:    models.SourceSnapshot,
		Path:      path,
		Checksum:  storage.Checksum(data),
		FetchedAt: time.Now().UTC(),
	}
	if err := db.UpsertSnapshot(row, snap); err != nil {
		return "", err
	}
	return snap.Repo, nil
}
