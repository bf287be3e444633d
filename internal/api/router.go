package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/starford/commitquest/internal/goals"
	"github.com/starford/commitquest/internal/graphservice"
	"github.com/starford/commitquest/internal/session"
	"github.com/starford/commitquest/internal/sse"
)

// Deps are the services behind the API. Session, Goals and Upstream may be
// nil; their routes then answer 503.
type Deps struct {
	Graphs   *graphservice.Service
	Session  *session.State
	Goals    *goals.Service
	Upstream Acknowledger
	Broker   *sse.Broker
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// When d.Broker is set, GET /events (SSE) and GET /ws (WebSocket) are mounted
// inside the auth group.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := &Handler{
		graphs:   d.Graphs,
		session:  d.Session,
		goals:    d.Goals,
		upstream: d.Upstream,
	}

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Repos and their graphs.
	r.Get("/repos", h.ListRepos)
	r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
		r.Get("/graph", h.Graph)
		r.Get("/commits", h.Commits)
		r.Get("/commits/{sha}", h.Commit)
		r.Get("/branches", h.Branches)
		r.Post("/refresh", h.Refresh)
		r.Post("/pin", h.Pin)
		r.Delete("/pin", h.Unpin)
	})

	r.Get("/search", h.Search)

	// Upstream session and goals.
	r.Get("/session", h.Session)
	r.Post("/session/level-up/dismiss", h.DismissLevelUp)
	r.Post("/session/backlog/dismiss", h.DismissBacklog)
	r.Get("/goals", h.Goals)
	r.Post("/goals/{id}/complete", h.CompleteGoal)
	r.Post("/goals/{id}/increment", h.IncrementGoal)
	r.Delete("/goals/{id}", h.DeleteGoal)

	if d.Broker != nil {
		r.Get("/events", d.Broker.ServeHTTP)
		r.Get("/ws", WebSocket(d.Broker))
	}

	return r
}
