// Package snapshot decodes commit-history snapshot documents (JSON or YAML)
// into models.Snapshot values.
package snapshot

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/commitquest/internal/models"
)

// Extensions lists the file extensions recognised as snapshot documents.
var Extensions = []string{".json", ".yaml", ".yml"}

// IsSnapshotFile reports whether name has a snapshot extension.
func IsSnapshotFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// RepoKey derives the repository key from a snapshot path relative to the
// snapshot root: "octo/widgets.json" -> "octo/widgets".
func RepoKey(rel string) string {
	rel = strings.ReplaceAll(rel, "\\", "/")
	return strings.TrimSuffix(rel, path.Ext(rel))
}

type commitDoc struct {
	SHA     string `yaml:"sha" json:"sha"`
	Message string `yaml:"message" json:"message,omitempty"`
	Author  string `yaml:"author" json:"author,omitempty"`
	Date    string `yaml:"date" json:"date,omitempty"`
}

func (c commitDoc) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SHA, validation.Required),
		validation.Field(&c.Date, validation.Required, validation.By(validTimestamp)),
	)
}

type branchDoc struct {
	Name    string      `yaml:"name" json:"name"`
	SHA     string      `yaml:"sha" json:"sha"`
	Date    string      `yaml:"date" json:"date,omitempty"`
	Commits []commitDoc `yaml:"commits" json:"commits"`
}

func (b branchDoc) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Name, validation.Required),
		validation.Field(&b.Date, validation.By(validTimestamp)),
		validation.Field(&b.Commits),
	)
}

type document struct {
	Repo     string      `yaml:"repo" json:"repo,omitempty"`
	Main     []commitDoc `yaml:"main" json:"main"`
	Branches []branchDoc `yaml:"branches" json:"branches"`
}

func (d document) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Main),
		validation.Field(&d.Branches),
	)
}

// Parse decodes and validates a snapshot document. JSON input is accepted as
// YAML. fallbackRepo is used when the document does not name its repo.
func Parse(data []byte, fallbackRepo string) (*models.Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("snapshot: invalid: %w", err)
	}

	repo := doc.Repo
	if repo == "" {
		repo = fallbackRepo
	}
	snap := &models.Snapshot{
		Repo:     repo,
		Source:   models.SourceSnapshot,
		Main:     toCommits(doc.Main),
		Branches: make([]models.Branch, 0, len(doc.Branches)),
	}
	for _, b := range doc.Branches {
		br := models.Branch{
			Name:    b.Name,
			SHA:     b.SHA,
			Commits: toCommits(b.Commits),
		}
		br.Date, _ = ParseTimestamp(b.Date)
		// Head fields fall back to the newest commit.
		if len(br.Commits) > 0 {
			if br.SHA == "" {
				br.SHA = br.Commits[0].SHA
			}
			if br.Date.IsZero() {
				br.Date = br.Commits[0].Date
			}
		}
		snap.Branches = append(snap.Branches, br)
	}
	return snap, nil
}

func toCommits(docs []commitDoc) []models.Commit {
	out := make([]models.Commit, 0, len(docs))
	for _, c := range docs {
		ts, _ := ParseTimestamp(c.Date)
		out = append(out, models.Commit{
			SHA:     c.SHA,
			Message: FirstLine(c.Message),
			Author:  c.Author,
			Date:    ts,
		})
	}
	return out
}

// Encode renders snap as a JSON snapshot document that Parse accepts.
func Encode(snap *models.Snapshot) ([]byte, error) {
	doc := document{
		Repo:     snap.Repo,
		Main:     fromCommits(snap.Main),
		Branches: make([]branchDoc, 0, len(snap.Branches)),
	}
	for _, b := range snap.Branches {
		doc.Branches = append(doc.Branches, branchDoc{
			Name:    b.Name,
			SHA:     b.SHA,
			Date:    formatTimestamp(b.Date),
			Commits: fromCommits(b.Commits),
		})
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return append(out, '\n'), nil
}

func fromCommits(commits []models.Commit) []commitDoc {
	out := make([]commitDoc, 0, len(commits))
	for _, c := range commits {
		out = append(out, commitDoc{
			SHA:     c.SHA,
			Message: c.Message,
			Author:  c.Author,
			Date:    formatTimestamp(c.Date),
		})
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 (with or without fractional seconds or zone)
// and date-only values. Values without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("snapshot: unrecognised timestamp %q", s)
}

func validTimestamp(v interface{}) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	_, err := ParseTimestamp(s)
	return err
}

// FirstLine returns the subject line of a commit message.
func FirstLine(msg string) string {
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		return msg[:i]
	}
	return msg
}
