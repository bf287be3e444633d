// Package graphservice coordinates commit sources, the commit cache, and the
// graph layout.
package graphservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/graph"
	"github.com/starford/commitquest/internal/index"
	"github.com/starford/commitquest/internal/metrics"
	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/snapshot"
	"github.com/starford/commitquest/internal/storage"
)

// Source fetches commit history from a hosting service.
type Source interface {
	ListCommits(ctx context.Context, owner, repo string, perPage int) ([]models.Commit, error)
	ListBranches(ctx context.Context, owner, repo string) ([]models.Branch, error)
	GetCommit(ctx context.Context, owner, repo, sha string) (*models.CommitDetail, error)
}

// ChangeFunc is called after a repo is created, updated, or deleted by the
// service. kind matches the index watcher kinds.
type ChangeFunc func(kind, repo string)

// Options configures a Service.
type Options struct {
	Layout         graph.Options
	CommitsPerPage int
	CacheTTL       time.Duration
}

// RepoSummary is one entry of the repo list.
type RepoSummary struct {
	Repo      string    `json:"repo"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Service serves layouts and commit data for cached or fetched repos.
type Service struct {
	store    storage.Provider
	db       *index.DB
	source   Source
	opts     Options
	logger   *slog.Logger
	onChange ChangeFunc
	fetches  singleflight.Group
	now      func() time.Time
}

// New creates a Service. source may be nil, in which case only snapshot and
// previously cached repos are served. onChange may be nil.
func New(store storage.Provider, db *index.DB, source Source, opts Options, logger *slog.Logger, onChange ChangeFunc) *Service {
	if opts.CommitsPerPage <= 0 {
		opts.CommitsPerPage = 50
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &Service{
		store:    store,
		db:       db,
		source:   source,
		opts:     opts,
		logger:   logger,
		onChange: onChange,
		now:      time.Now,
	}
}

// SplitRepo splits an "owner/name" key.
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("graphservice: repo %q: %w", repo, apperr.ErrInvalid)
	}
	return owner, name, nil
}

// Graph returns the positioned commit graph for repo.
func (s *Service) Graph(ctx context.Context, repo string) (*graph.Graph, error) {
	snap, err := s.load(ctx, repo, false)
	if err != nil {
		return nil, err
	}
	return s.layout(snap), nil
}

func (s *Service) layout(snap *models.Snapshot) *graph.Graph {
	g := graph.Compute(snap.Main, snap.Branches, s.opts.Layout)
	metrics.LayoutsComputed.Inc()
	metrics.LayoutNodes.Observe(float64(len(g.Nodes)))
	return g
}

// Commits returns the main timeline of repo, newest first.
func (s *Service) Commits(ctx context.Context, repo string) ([]models.Commit, error) {
	snap, err := s.load(ctx, repo, false)
	if err != nil {
		return nil, err
	}
	return snap.Main, nil
}

// Branches returns the branches of repo.
func (s *Service) Branches(ctx context.Context, repo string) ([]models.Branch, error) {
	snap, err := s.load(ctx, repo, false)
	if err != nil {
		return nil, err
	}
	return snap.Branches, nil
}

// Commit returns one commit. Change statistics are only available for
// GitHub-sourced repos; other repos return the cached commit without them.
func (s *Service) Commit(ctx context.Context, repo, sha string) (*models.CommitDetail, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}
	row, rowErr := s.db.GetRepo(repo)
	if s.source != nil && (rowErr != nil || row.Source == models.SourceGitHub) {
		return s.source.GetCommit(ctx, owner, name, sha)
	}

	snap, err := s.load(ctx, repo, false)
	if err != nil {
		return nil, err
	}
	if c, ok := findCommit(snap, sha); ok {
		return &models.CommitDetail{Commit: c, Files: []models.CommitFile{}}, nil
	}
	return nil, fmt.Errorf("graphservice: commit %s: %w", sha, apperr.ErrNotFound)
}

// Refresh refetches repo from GitHub regardless of cache age and returns the
// new layout. Snapshot repos are returned as cached.
func (s *Service) Refresh(ctx context.Context, repo string) (*graph.Graph, error) {
	snap, err := s.load(ctx, repo, true)
	if err != nil {
		return nil, err
	}
	return s.layout(snap), nil
}

// Repos lists every cached repo.
func (s *Service) Repos(_ context.Context) ([]RepoSummary, error) {
	rows, err := s.db.ListRepos()
	if err != nil {
		return nil, err
	}
	out := make([]RepoSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, RepoSummary{Repo: r.Repo, Source: r.Source, FetchedAt: r.FetchedAt})
	}
	return out, nil
}

// Search finds cached commits by message, author, or sha prefix.
func (s *Service) Search(_ context.Context, q string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(q) == "" {
		return []index.SearchResult{}, nil
	}
	res, err := s.db.SearchCommits(q, limit)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []index.SearchResult{}
	}
	return res, nil
}

// Pin writes the cached history of repo into the snapshot directory, turning
// it into a snapshot repo that is no longer refreshed.
func (s *Service) Pin(ctx context.Context, repo string) error {
	snap, err := s.load(ctx, repo, false)
	if err != nil {
		return err
	}
	if snap.Source == models.SourceSnapshot {
		return fmt.Errorf("graphservice: pin %s: %w", repo, apperr.ErrAlreadyExists)
	}
	snap.Repo = repo
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	path := repo + ".json"
	if err := s.store.Write(path, data); err != nil {
		return err
	}
	if _, err := index.IndexFile(s.db, path, data); err != nil {
		return err
	}
	s.notify(index.EventUpdated, repo)
	return nil
}

// Unpin deletes the snapshot file backing repo and drops it from the cache.
func (s *Service) Unpin(_ context.Context, repo string) error {
	row, err := s.db.GetRepo(repo)
	if err != nil {
		return err
	}
	if row.Path == "" {
		return fmt.Errorf("graphservice: unpin %s: %w", repo, apperr.ErrNotFound)
	}
	if err := s.store.Delete(row.Path); err != nil {
		return err
	}
	if _, err := s.db.DeleteByPath(row.Path); err != nil {
		return err
	}
	s.notify(index.EventDeleted, repo)
	return nil
}

// load returns the cached snapshot for repo, fetching from GitHub when the
// repo is GitHub-sourced (or unknown) and the cache is older than the TTL.
// When a background refresh fails, the stale copy is served.
func (s *Service) load(ctx context.Context, repo string, force bool) (*models.Snapshot, error) {
	if _, _, err := SplitRepo(repo); err != nil {
		return nil, err
	}

	row, err := s.db.GetRepo(repo)
	found := err == nil
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if found {
		fresh := s.now().Sub(row.FetchedAt) < s.opts.CacheTTL
		if row.Source == models.SourceSnapshot || s.source == nil || (fresh && !force) {
			return s.db.Snapshot(repo)
		}
	} else if s.source == nil {
		return nil, fmt.Errorf("graphservice: repo %s: %w", repo, apperr.ErrNotFound)
	}

	// The fetch is shared by every caller waiting on repo, so it must not
	// end when the first caller goes away.
	v, err, _ := s.fetches.Do(repo, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetch(fctx, repo, found)
	})
	if err != nil {
		if found && !force {
			s.logger.Warn("graphservice: refresh failed, serving cached copy",
				slog.String("repo", repo),
				slog.String("error", err.Error()))
			return s.db.Snapshot(repo)
		}
		return nil, err
	}
	return v.(*models.Snapshot), nil
}

const fetchTimeout = 30 * time.Second

func (s *Service) fetch(ctx context.Context, repo string, existed bool) (*models.Snapshot, error) {
	owner, name, _ := SplitRepo(repo)

	var main []models.Commit
	var branches []models.Branch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		main, err = s.source.ListCommits(gctx, owner, name, s.opts.CommitsPerPage)
		return err
	})
	g.Go(func() error {
		var err error
		branches, err = s.source.ListBranches(gctx, owner, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("graphservice: fetch %s: %w", repo, err)
	}

	snap := &models.Snapshot{
		Repo:      repo,
		Source:    models.SourceGitHub,
		Main:      main,
		Branches:  branches,
		FetchedAt: s.now().UTC(),
	}
	row := index.RepoRow{Repo: repo, Source: models.SourceGitHub, FetchedAt: snap.FetchedAt}
	if err := s.db.UpsertSnapshot(row, snap); err != nil {
		return nil, err
	}

	kind := index.EventUpdated
	if !existed {
		kind = index.EventCreated
	}
	s.logger.Debug("graphservice: fetched", slog.String("repo", repo), slog.Int("commits", len(main)), slog.Int("branches", len(branches)))
	s.notify(kind, repo)
	return snap, nil
}

func (s *Service) notify(kind, repo string) {
	if s.onChange != nil {
		s.onChange(kind, repo)
	}
}

func findCommit(snap *models.Snapshot, sha string) (models.Commit, bool) {
	for _, c := range snap.Main {
		if c.SHA == sha {
			return c, true
		}
	}
	for _, b := range snap.Branches {
		for _, c := range b.Commits {
			if c.SHA == sha {
				return c, true
			}
		}
	}
	return models.Commit{}, false
}
