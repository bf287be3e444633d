package api

import (
	"time"

	"github.com/starford/commitquest/internal/goals"
	"github.com/starford/commitquest/internal/graph"
	"github.com/starford/commitquest/internal/graphservice"
	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/session"
)

// RepoSummary is one cached repo (aliased from the domain layer).
type RepoSummary = graphservice.RepoSummary

// ReposResponse wraps the repo listing.
type ReposResponse struct {
	Repos []RepoSummary `json:"repos" validate:"required"`
}

// GraphResponse is the positioned commit graph.
type GraphResponse = graph.Graph

// CommitsResponse wraps the main timeline of a repo, newest first.
type CommitsResponse struct {
	Repo    string          `json:"repo" example:"octo/quest" validate:"required"`
	Commits []models.Commit `json:"commits" validate:"required"`
}

// CommitResponse is a single commit with its diff stats.
type CommitResponse = models.CommitDetail

// BranchesResponse wraps the branches of a repo.
type BranchesResponse struct {
	Repo     string          `json:"repo" example:"octo/quest" validate:"required"`
	Branches []models.Branch `json:"branches" validate:"required"`
}

// SearchResult is a single commit search hit in the API response.
type SearchResult struct {
	Repo    string    `json:"repo" example:"octo/quest" validate:"required"`
	SHA     string    `json:"sha" example:"a1b2c3d" validate:"required"`
	Message string    `json:"message" example:"Add streak bonus" validate:"required"`
	Author  string    `json:"author" example:"octocat"`
	Date    time.Time `json:"date"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// SessionResponse is the reconciled XP and toast state.
type SessionResponse = session.View

// GoalsResponse wraps daily and custom goals.
type GoalsResponse = goals.Lists

// DismissResponse reports whether anything was visible before dismissal.
type DismissResponse struct {
	Dismissed bool `json:"dismissed"`
}
