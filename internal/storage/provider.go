// Package storage defines the snapshot directory abstraction.
package storage

import "github.com/starford/commitquest/internal/models"

// Provider is the interface for snapshot file operations.
type Provider interface {
	// List returns metadata for every snapshot document under dir (relative to root).
	List(dir string) ([]models.SnapshotMetadata, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}
