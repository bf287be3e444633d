package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/goals"
	"github.com/starford/commitquest/internal/graphservice"
	"github.com/starford/commitquest/internal/session"
)

// Acknowledger forwards dismissals to the upstream dashboard.
type Acknowledger interface {
	MarkRead(ctx context.Context) error
	ClearLevelUp(ctx context.Context) error
}

// Handler holds API route handlers. Session, Goals and Upstream are nil
// when no upstream backend is configured.
type Handler struct {
	graphs   *graphservice.Service
	session  *session.State
	goals    *goals.Service
	upstream Acknowledger
}

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// repoKey extracts "owner/name" from the route.
func repoKey(r *http.Request) string {
	return chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
}

func goalID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("goal id %q: %w", chi.URLParam(r, "id"), apperr.ErrInvalid)
	}
	return id, nil
}

// ListRepos handles GET /api/repos.
//
//	@Summary		List cached repos
//	@Tags			repos
//	@Produce		json
//	@Success		200	{object}	ReposResponse
//	@Security		BearerAuth
//	@Router			/repos [get]
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.graphs.Repos(r.Context())
	if err != nil {
		writeError(w, "list repos", err)
		return
	}
	writeJSON(w, http.StatusOK, ReposResponse{Repos: repos})
}

// Graph handles GET /api/repos/{owner}/{repo}/graph.
//
//	@Summary		Positioned commit graph of a repo
//	@Tags			repos
//	@Produce		json
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Success		200		{object}	GraphResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.graphs.Graph(r.Context(), repoKey(r))
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// Commits handles GET /api/repos/{owner}/{repo}/commits.
//
//	@Summary		Main timeline of a repo, newest first
//	@Tags			repos
//	@Produce		json
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Success		200		{object}	CommitsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/commits [get]
func (h *Handler) Commits(w http.ResponseWriter, r *http.Request) {
	repo := repoKey(r)
	commits, err := h.graphs.Commits(r.Context(), repo)
	if err != nil {
		writeError(w, "commits", err)
		return
	}
	writeJSON(w, http.StatusOK, CommitsResponse{Repo: repo, Commits: commits})
}

// Branches handles GET /api/repos/{owner}/{repo}/branches.
//
//	@Summary		Branches of a repo
//	@Tags			repos
//	@Produce		json
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Success		200		{object}	BranchesResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/branches [get]
func (h *Handler) Branches(w http.ResponseWriter, r *http.Request) {
	repo := repoKey(r)
	branches, err := h.graphs.Branches(r.Context(), repo)
	if err != nil {
		writeError(w, "branches", err)
		return
	}
	writeJSON(w, http.StatusOK, BranchesResponse{Repo: repo, Branches: branches})
}

// Commit handles GET /api/repos/{owner}/{repo}/commits/{sha}.
//
//	@Summary		Commit detail
//	@Tags			repos
//	@Produce		json
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Param			sha		path		string	true	"Commit SHA"
//	@Success		200		{object}	CommitResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/commits/{sha} [get]
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	c, err := h.graphs.Commit(r.Context(), repoKey(r), chi.URLParam(r, "sha"))
	if err != nil {
		writeError(w, "commit", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Refresh handles POST /api/repos/{owner}/{repo}/refresh.
//
//	@Summary		Refetch a repo ignoring the cache TTL
//	@Tags			repos
//	@Produce		json
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Success		202		{object}	GraphResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	g, err := h.graphs.Refresh(r.Context(), repoKey(r))
	if err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusAccepted, g)
}

// Pin handles POST /api/repos/{owner}/{repo}/pin.
//
//	@Summary		Pin a repo as a local snapshot
//	@Tags			repos
//	@Produce		json
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Success		201		{object}	map[string]string
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/pin [post]
func (h *Handler) Pin(w http.ResponseWriter, r *http.Request) {
	repo := repoKey(r)
	if err := h.graphs.Pin(r.Context(), repo); err != nil {
		writeError(w, "pin", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"repo": repo})
}

// Unpin handles DELETE /api/repos/{owner}/{repo}/pin.
//
//	@Summary		Delete a pinned snapshot
//	@Tags			repos
//	@Param			owner	path		string	true	"Repo owner"
//	@Param			repo	path		string	true	"Repo name"
//	@Success		204
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/repos/{owner}/{repo}/pin [delete]
func (h *Handler) Unpin(w http.ResponseWriter, r *http.Request) {
	if err := h.graphs.Unpin(r.Context(), repoKey(r)); err != nil {
		writeError(w, "unpin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Search cached commits
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	hits, err := h.graphs.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	out := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchResult{
			Repo:    hit.Repo,
			SHA:     hit.SHA,
			Message: hit.Message,
			Author:  hit.Author,
			Date:    hit.Date,
		})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// Session handles GET /api/session.
//
//	@Summary		Reconciled XP, level and toast state
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		writeError(w, "session", apperr.ErrUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.session.View())
}

// DismissLevelUp handles POST /api/session/level-up/dismiss.
//
//	@Summary		Dismiss the level-up banner
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	DismissResponse
//	@Failure		502	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/level-up/dismiss [post]
func (h *Handler) DismissLevelUp(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		writeError(w, "dismiss level up", apperr.ErrUnavailable)
		return
	}
	had := h.session.DismissLevelUp()
	if h.upstream != nil {
		if err := h.upstream.ClearLevelUp(r.Context()); err != nil {
			writeError(w, "clear level up", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, DismissResponse{Dismissed: had})
}

// DismissBacklog handles POST /api/session/backlog/dismiss.
//
//	@Summary		Dismiss the catch-up backlog
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	DismissResponse
//	@Failure		502	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/session/backlog/dismiss [post]
func (h *Handler) DismissBacklog(w http.ResponseWriter, r *http.Request) {
	if h.session == nil {
		writeError(w, "dismiss backlog", apperr.ErrUnavailable)
		return
	}
	had := h.session.DismissBacklog()
	if h.upstream != nil {
		if err := h.upstream.MarkRead(r.Context()); err != nil {
			writeError(w, "mark read", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, DismissResponse{Dismissed: had})
}

// Goals handles GET /api/goals.
//
//	@Summary		Daily and custom goals
//	@Tags			goals
//	@Produce		json
//	@Success		200	{object}	GoalsResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/goals [get]
func (h *Handler) Goals(w http.ResponseWriter, r *http.Request) {
	if h.goals == nil {
		writeError(w, "goals", apperr.ErrUnavailable)
		return
	}
	lists, err := h.goals.List(r.Context())
	if err != nil {
		writeError(w, "goals", err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// CompleteGoal handles POST /api/goals/{id}/complete.
//
//	@Summary		Complete a goal
//	@Tags			goals
//	@Param			id	path		int	true	"Goal ID"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/goals/{id}/complete [post]
func (h *Handler) CompleteGoal(w http.ResponseWriter, r *http.Request) {
	h.mutateGoal(w, r, "complete goal", func(ctx context.Context, id int64) error {
		return h.goals.Complete(ctx, id)
	})
}

// IncrementGoal handles POST /api/goals/{id}/increment.
//
//	@Summary		Increment goal progress
//	@Tags			goals
//	@Param			id	path		int	true	"Goal ID"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/goals/{id}/increment [post]
func (h *Handler) IncrementGoal(w http.ResponseWriter, r *http.Request) {
	h.mutateGoal(w, r, "increment goal", func(ctx context.Context, id int64) error {
		return h.goals.Increment(ctx, id)
	})
}

// DeleteGoal handles DELETE /api/goals/{id}.
//
//	@Summary		Delete a goal
//	@Tags			goals
//	@Param			id	path		int	true	"Goal ID"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/goals/{id} [delete]
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	h.mutateGoal(w, r, "delete goal", func(ctx context.Context, id int64) error {
		return h.goals.Remove(ctx, id)
	})
}

func (h *Handler) mutateGoal(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, int64) error) {
	if h.goals == nil {
		writeError(w, op, apperr.ErrUnavailable)
		return
	}
	id, err := goalID(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		slog.Info("goal mutation rolled back", slog.String("op", op), slog.Int64("id", id))
		writeError(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
