// Package goals serves the dashboard's goal lists from a local cache and
// applies goal mutations optimistically.
package goals

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/commitquest/internal/metrics"
	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/optimistic"
)

// Cache keys.
const (
	KeyDaily  = "goals/daily"
	KeyCustom = "goals/custom"
)

// Upstream is the subset of the dashboard API the service needs.
type Upstream interface {
	DailyGoals(ctx context.Context) ([]models.Goal, error)
	CustomGoals(ctx context.Context) ([]models.Goal, error)
	CompleteGoal(ctx context.Context, id int64) (*models.Goal, error)
	IncrementGoal(ctx context.Context, id int64) (*models.Goal, error)
	DeleteGoal(ctx context.Context, id int64) error
}

// Lists is the response shape for GET /api/goals.
type Lists struct {
	Daily  []models.Goal `json:"daily"`
	Custom []models.Goal `json:"custom"`
}

// Service owns the goal cache.
type Service struct {
	up     Upstream
	cache  *optimistic.Cache[[]models.Goal]
	logger *slog.Logger
}

// New creates a Service. onRollback, when non-nil, is called after every
// reverted mutation.
func New(up Upstream, logger *slog.Logger, onRollback func(optimistic.Rollback)) *Service {
	s := &Service{
		up:     up,
		cache:  optimistic.New[[]models.Goal](),
		logger: logger,
	}
	s.cache.OnRollback(func(rb optimistic.Rollback) {
		metrics.Rollbacks.WithLabelValues(rb.Key).Inc()
		logger.Warn("goals: mutation rolled back",
			slog.String("mutation", rb.ID),
			slog.String("key", rb.Key),
			slog.String("error", rb.Err.Error()))
		if onRollback != nil {
			onRollback(rb)
		}
	})
	return s
}

// List returns daily and custom goals, refetching whichever list is stale.
func (s *Service) List(ctx context.Context) (Lists, error) {
	daily, err := s.load(ctx, KeyDaily, s.up.DailyGoals)
	if err != nil {
		return Lists{}, err
	}
	custom, err := s.load(ctx, KeyCustom, s.up.CustomGoals)
	if err != nil {
		return Lists{}, err
	}
	return Lists{Daily: daily, Custom: custom}, nil
}

func (s *Service) load(ctx context.Context, key string, fetch func(context.Context) ([]models.Goal, error)) ([]models.Goal, error) {
	if v, fresh := s.cache.Get(key); fresh {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("goals: fetch %s: %w", key, err)
	}
	s.cache.Set(key, v)
	return v, nil
}

// Complete marks a custom goal complete.
func (s *Service) Complete(ctx context.Context, id int64) error {
	return s.cache.Mutate(ctx, KeyCustom,
		mapGoal(id, func(g *models.Goal) { g.Completed = true }),
		func(ctx context.Context) error {
			_, err := s.up.CompleteGoal(ctx, id)
			return err
		})
}

// Increment bumps a counter goal by one.
func (s *Service) Increment(ctx context.Context, id int64) error {
	return s.cache.Mutate(ctx, KeyCustom,
		mapGoal(id, func(g *models.Goal) { g.Current++ }),
		func(ctx context.Context) error {
			_, err := s.up.IncrementGoal(ctx, id)
			return err
		})
}

// Remove deletes a custom goal.
func (s *Service) Remove(ctx context.Context, id int64) error {
	return s.cache.Mutate(ctx, KeyCustom,
		func(old []models.Goal) []models.Goal {
			return slices.DeleteFunc(slices.Clone(old), func(g models.Goal) bool { return g.ID == id })
		},
		func(ctx context.Context) error {
			return s.up.DeleteGoal(ctx, id)
		})
}

// Created prepends a goal created elsewhere to the custom list.
func (s *Service) Created(g models.Goal) {
	s.cache.Update(KeyCustom, func(old []models.Goal) []models.Goal {
		return append([]models.Goal{g}, old...)
	})
}

// Invalidate marks key and its children stale.
func (s *Service) Invalidate(key string) {
	s.cache.Invalidate(key)
}

func mapGoal(id int64, fn func(*models.Goal)) func([]models.Goal) []models.Goal {
	return func(old []models.Goal) []models.Goal {
		out := slices.Clone(old)
		for i := range out {
			if out[i].ID == id {
				fn(&out[i])
			}
		}
		return out
	}
}
