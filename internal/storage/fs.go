package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/snapshot"
)

// FS implements Provider over a snapshot directory laid out as
// <owner>/<repo>.{json,yaml,yml}.
type FS struct {
	root string // absolute path to the snapshot directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// resolve maps a slash-separated path relative to the root onto the file
// system, rejecting anything that escapes the root.
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", rel, apperr.ErrInvalid)
	}
	abs := filepath.Join(f.root, cleaned)
	if abs != f.root && !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes snapshot root: %s: %w", rel, apperr.ErrInvalid)
	}
	return abs, nil
}

// resolveDocument is resolve restricted to snapshot document names.
func (f *FS) resolveDocument(rel string) (string, error) {
	if !snapshot.IsSnapshotFile(rel) {
		return "", fmt.Errorf("storage: %s is not a snapshot document: %w", rel, apperr.ErrInvalid)
	}
	return f.resolve(rel)
}

// List walks dir (relative to root) and returns metadata for every snapshot
// document. Hidden files and directories are skipped. Paths use forward slashes.
func (f *FS) List(dir string) ([]models.SnapshotMetadata, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []models.SnapshotMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".") && p != base
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !snapshot.IsSnapshotFile(d.Name()) {
			return nil
		}
		meta, err := f.describe(p, d)
		if err != nil {
			return err
		}
		out = append(out, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

func (f *FS) describe(p string, d fs.DirEntry) (models.SnapshotMetadata, error) {
	info, err := d.Info()
	if err != nil {
		return models.SnapshotMetadata{}, err
	}
	file, err := os.Open(p)
	if err != nil {
		return models.SnapshotMetadata{}, err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return models.SnapshotMetadata{}, err
	}
	rel, _ := filepath.Rel(f.root, p)
	return models.SnapshotMetadata{
		Path:      filepath.ToSlash(rel),
		Checksum:  hex.EncodeToString(h.Sum(nil)),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a snapshot file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces a snapshot document: tmp file, fsync, rename.
// The owner directory is created as needed.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolveDocument(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	// The dot prefix keeps List and the watcher away from partial files.
	tmp, err := os.CreateTemp(dir, ".commitquest-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a snapshot document and any owner directories it leaves empty.
func (f *FS) Delete(path string) error {
	abs, err := f.resolveDocument(path)
	if err != nil {
		return err
	}
	err = os.Remove(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	f.pruneEmpty(filepath.Dir(abs))
	return nil
}

// pruneEmpty removes dir and its parents up to (not including) the root
// while they are empty.
func (f *FS) pruneEmpty(dir string) {
	for dir != f.root && strings.HasPrefix(dir, f.root+string(os.PathSeparator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
