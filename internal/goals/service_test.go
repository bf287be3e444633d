package goals

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/commitquest/internal/models"
	"github.com/starford/commitquest/internal/optimistic"
	"github.com/starford/commitquest/internal/session"
)

type fakeUpstream struct {
	mu      sync.Mutex
	daily   []models.Goal
	custom  []models.Goal
	fetches int
	fail    error
	// observed runs while a write is in flight.
	observed func()
}

func (f *fakeUpstream) DailyGoals(context.Context) ([]models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.daily, nil
}

func (f *fakeUpstream) CustomGoals(context.Context) ([]models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.custom, nil
}

func (f *fakeUpstream) write() error {
	if f.observed != nil {
		f.observed()
	}
	return f.fail
}

func (f *fakeUpstream) CompleteGoal(context.Context, int64) (*models.Goal, error) {
	return &models.Goal{}, f.write()
}

func (f *fakeUpstream) IncrementGoal(context.Context, int64) (*models.Goal, error) {
	return &models.Goal{}, f.write()
}

func (f *fakeUpstream) DeleteGoal(context.Context, int64) error { return f.write() }

func newService(t *testing.T, up *fakeUpstream, onRollback func(optimistic.Rollback)) *Service {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(up, logger, onRollback)
}

func fixture() *fakeUpstream {
	return &fakeUpstream{
		daily: []models.Goal{{ID: 1, Type: models.GoalDaily, Label: "commit today", Target: 1}},
		custom: []models.Goal{
			{ID: 10, Type: models.GoalCustom, Label: "read a paper", Target: 1},
			{ID: 11, Type: models.GoalCustom, Label: "solve 5 problems", Target: 5, Current: 2},
		},
	}
}

func TestList_CachesUntilInvalidated(t *testing.T) {
	up := fixture()
	s := newService(t, up, nil)
	ctx := context.Background()

	lists, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(lists.Daily) != 1 || len(lists.Custom) != 2 {
		t.Fatalf("lists = %+v", lists)
	}
	_, _ = s.List(ctx)
	if up.fetches != 2 {
		t.Errorf("fetches = %d, want 2 (cached second time)", up.fetches)
	}

	s.Invalidate(session.KeyCustomGoals)
	_, _ = s.List(ctx)
	if up.fetches != 3 {
		t.Errorf("fetches = %d, want 3 (custom refetched only)", up.fetches)
	}

	s.Invalidate(session.KeyGoals)
	_, _ = s.List(ctx)
	if up.fetches != 5 {
		t.Errorf("fetches = %d, want 5 (both refetched)", up.fetches)
	}
}

func TestIncrement_OptimisticThenStale(t *testing.T) {
	up := fixture()
	s := newService(t, up, nil)
	ctx := context.Background()
	_, _ = s.List(ctx)

	var during float64
	up.observed = func() {
		v, _ := s.cache.Get(KeyCustom)
		during = v[1].Current
	}
	if err := s.Increment(ctx, 11); err != nil {
		t.Fatalf("Increment: %v", err)
	}
	if during != 3 {
		t.Errorf("speculative current = %v, want 3", during)
	}
	if _, fresh := s.cache.Get(KeyCustom); fresh {
		t.Error("custom list should be stale after the mutation settles")
	}
}

func TestComplete_RollbackOnError(t *testing.T) {
	up := fixture()
	var rolled []optimistic.Rollback
	s := newService(t, up, func(rb optimistic.Rollback) { rolled = append(rolled, rb) })
	ctx := context.Background()
	_, _ = s.List(ctx)

	var during bool
	up.observed = func() {
		v, _ := s.cache.Get(KeyCustom)
		during = v[0].Completed
	}
	up.fail = errors.New("upstream down")

	if err := s.Complete(ctx, 10); err == nil {
		t.Fatal("expected error")
	}
	if !during {
		t.Error("goal should read completed while the write is in flight")
	}
	v, _ := s.cache.Get(KeyCustom)
	if v[0].Completed {
		t.Error("completion should be rolled back")
	}
	if up.custom[0].Completed {
		t.Error("upstream fixture must not be modified by the speculative update")
	}
	if len(rolled) != 1 || rolled[0].Key != KeyCustom {
		t.Errorf("rollbacks = %+v", rolled)
	}
}

func TestRemoveAndCreated(t *testing.T) {
	up := fixture()
	s := newService(t, up, nil)
	ctx := context.Background()
	_, _ = s.List(ctx)

	if err := s.Remove(ctx, 10); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	v, _ := s.cache.Get(KeyCustom)
	if len(v) != 1 || v[0].ID != 11 {
		t.Errorf("after remove = %+v", v)
	}

	s.Created(models.Goal{ID: 12, Label: "new"})
	v, _ = s.cache.Get(KeyCustom)
	if len(v) != 2 || v[0].ID != 12 {
		t.Errorf("created goal should be prepended: %+v", v)
	}
}
