// Package models defines the domain types for commitquest.
package models

import "time"

// Repo sources.
const (
	SourceGitHub   = "github"
	SourceSnapshot = "snapshot"
)

// Commit identifies one repository commit. Commits are produced by the
// source-control host and are read-only here.
type Commit struct {
	SHA     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
}

// Branch is a named, newest-first commit list diverging from the main timeline.
// SHA and Date describe the head commit.
type Branch struct {
	Name    string    `json:"name"`
	SHA     string    `json:"sha"`
	Date    time.Time `json:"date"`
	Commits []Commit  `json:"commits"`
}

// Snapshot is the commit history of one repository at a point in time:
// the default branch timeline (newest-first) plus its branches.
type Snapshot struct {
	Repo      string    `json:"repo"`
	Source    string    `json:"source"`
	Main      []Commit  `json:"main"`
	Branches  []Branch  `json:"branches"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SnapshotMetadata is a lightweight representation returned by storage listings.
type SnapshotMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommitFile is one file touched by a commit.
type CommitFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Status    string `json:"status"`
}

// CommitDetail is a commit with its change statistics.
type CommitDetail struct {
	Commit
	Additions int          `json:"additions"`
	Deletions int          `json:"deletions"`
	Files     []CommitFile `json:"files"`
}
