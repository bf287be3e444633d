// Package github fetches commit history from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/metrics"
	"github.com/starford/commitquest/internal/models"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// branchListPage is how many branches are requested before truncation.
const branchListPage = 15

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL       string
	Token         string
	BranchLimit   int
	BranchCommits int
	Concurrency   int
	RatePerSec    float64
	HTTPClient    *http.Client
}

// Client is a minimal GitHub REST client. It is safe for concurrent use.
type Client struct {
	baseURL       string
	token         string
	branchLimit   int
	branchCommits int
	concurrency   int
	limiter       *rate.Limiter
	http          *http.Client
}

// New creates a Client.
func New(opts Options) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		token:         opts.Token,
		branchLimit:   opts.BranchLimit,
		branchCommits: opts.BranchCommits,
		concurrency:   opts.Concurrency,
		http:          opts.HTTPClient,
		limiter:       rate.NewLimiter(rate.Inf, 0),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.branchLimit <= 0 {
		c.branchLimit = 10
	}
	if c.branchCommits <= 0 {
		c.branchCommits = 8
	}
	if c.concurrency <= 0 {
		c.concurrency = 4
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 10)
	}
	return c
}

// wire types

type apiAuthor struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

type apiCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string    `json:"message"`
		Author  apiAuthor `json:"author"`
	} `json:"commit"`
	Stats *struct {
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats,omitempty"`
	Files []models.CommitFile `json:"files,omitempty"`
}

func (a apiCommit) toModel() models.Commit {
	return models.Commit{
		SHA:     a.SHA,
		Message: firstLine(a.Commit.Message),
		Author:  a.Commit.Author.Name,
		Date:    a.Commit.Author.Date.UTC(),
	}
}

type apiBranch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// ListCommits returns the newest perPage commits of the default branch.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, perPage int) ([]models.Commit, error) {
	if perPage <= 0 {
		perPage = 50
	}
	q := url.Values{"per_page": {strconv.Itoa(perPage)}}
	return c.commits(ctx, owner, repo, q)
}

func (c *Client) commits(ctx context.Context, owner, repo string, q url.Values) ([]models.Commit, error) {
	var raw []apiCommit
	if err := c.get(ctx, repoPath(owner, repo, "commits"), q, &raw); err != nil {
		return nil, err
	}
	out := make([]models.Commit, 0, len(raw))
	for _, a := range raw {
		out = append(out, a.toModel())
	}
	return out, nil
}

// ListBranches lists up to the configured number of branches and fetches the
// recent commits of each in parallel. Branches whose history cannot be
// fetched, or is empty, are dropped.
func (c *Client) ListBranches(ctx context.Context, owner, repo string) ([]models.Branch, error) {
	var raw []apiBranch
	q := url.Values{"per_page": {strconv.Itoa(branchListPage)}}
	if err := c.get(ctx, repoPath(owner, repo, "branches"), q, &raw); err != nil {
		return nil, err
	}
	if len(raw) > c.branchLimit {
		raw = raw[:c.branchLimit]
	}

	results := make([]*models.Branch, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, b := range raw {
		g.Go(func() error {
			q := url.Values{
				"sha":      {b.Name},
				"per_page": {strconv.Itoa(c.branchCommits)},
			}
			commits, err := c.commits(gctx, owner, repo, q)
			if err != nil || len(commits) == 0 {
				return nil
			}
			results[i] = &models.Branch{
				Name:    b.Name,
				SHA:     commits[0].SHA,
				Date:    commits[0].Date,
				Commits: commits,
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Branch, 0, len(results))
	for _, b := range results {
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

// GetCommit returns one commit with its change statistics.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*models.CommitDetail, error) {
	var raw apiCommit
	if err := c.get(ctx, repoPath(owner, repo, "commits", sha), nil, &raw); err != nil {
		return nil, err
	}
	d := &models.CommitDetail{Commit: raw.toModel(), Files: raw.Files}
	if d.Files == nil {
		d.Files = []models.CommitFile{}
	}
	if raw.Stats != nil {
		d.Additions = raw.Stats.Additions
		d.Deletions = raw.Stats.Deletions
	}
	return d, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("github: GET %s: %w: %w", path, apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	metrics.GitHubRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("github: GET %s: %w", path, apperr.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("github: GET %s: %w", path, apperr.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("github: GET %s: %w: status %d: %s", path, apperr.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decode %s: %w", path, err)
	}
	return nil
}

func repoPath(owner, repo string, parts ...string) string {
	p := "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

func firstLine(msg string) string {
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		return msg[:i]
	}
	return msg
}
