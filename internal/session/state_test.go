package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/starford/commitquest/internal/events"
	"github.com/starford/commitquest/internal/models"
)

func TestApply_XPGainedPatchesTotals(t *testing.T) {
	s := New()
	eff := s.Apply(events.XPGained{Amount: 10, Source: "commit", NewLevel: 2, TotalXP: 310})

	v := s.View()
	if v.TotalXP != 310 || v.Level != 2 {
		t.Errorf("totals = %d/%d", v.TotalXP, v.Level)
	}
	if eff.Toast == nil || eff.Toast.Amount != 10 || eff.Toast.Label != "GitHub commit" {
		t.Fatalf("toast = %+v", eff.Toast)
	}
	if eff.LevelUp != 0 || v.PendingLevelUp != 0 {
		t.Errorf("no level-up expected")
	}
	if len(v.Toasts) != 1 || v.Toasts[0].ID != 1 {
		t.Errorf("toasts = %+v", v.Toasts)
	}
}

func TestApply_LevelUpHighestWins(t *testing.T) {
	s := New()
	s.Apply(events.XPGained{Amount: 100, LevelUp: true, NewLevel: 5, TotalXP: 1000})
	eff := s.Apply(events.XPGained{Amount: 1, LevelUp: true, NewLevel: 4, TotalXP: 1001})

	if eff.LevelUp != 0 {
		t.Errorf("lower level should not replace the banner")
	}
	if s.View().PendingLevelUp != 5 {
		t.Errorf("pending = %d, want 5", s.View().PendingLevelUp)
	}
	if !s.DismissLevelUp() {
		t.Error("DismissLevelUp should report a shown banner")
	}
	if s.View().PendingLevelUp != 0 || s.DismissLevelUp() {
		t.Error("banner should be cleared")
	}
}

func TestApply_ToastQueueBounded(t *testing.T) {
	s := New()
	for i := 1; i <= MaxToasts+5; i++ {
		s.Apply(events.XPGained{Amount: i})
	}
	v := s.View()
	if len(v.Toasts) != MaxToasts {
		t.Fatalf("toasts = %d, want %d", len(v.Toasts), MaxToasts)
	}
	if v.Toasts[0].Amount != 6 || v.Toasts[MaxToasts-1].Amount != MaxToasts+5 {
		t.Errorf("oldest toasts should be dropped first: first=%d last=%d", v.Toasts[0].Amount, v.Toasts[MaxToasts-1].Amount)
	}
}

func TestApply_GoalInvalidation(t *testing.T) {
	s := New()
	cases := []struct {
		ev   events.Event
		want string
	}{
		{events.GoalUpdated{}, KeyGoals},
		{events.GoalCreated{}, KeyCustomGoals},
		{events.GoalDeleted{ID: 1}, KeyCustomGoals},
	}
	for _, tc := range cases {
		eff := s.Apply(tc.ev)
		if len(eff.Invalidate) != 1 || eff.Invalidate[0] != tc.want {
			t.Errorf("%s: invalidate = %v, want [%s]", tc.ev.Kind(), eff.Invalidate, tc.want)
		}
	}
	if eff := s.Apply(events.Unknown{Name: "mystery"}); eff.Toast != nil || eff.Invalidate != nil {
		t.Errorf("unknown events must have no effect: %+v", eff)
	}
}

func TestView_IsCopy(t *testing.T) {
	s := New()
	s.Apply(events.XPGained{Amount: 1})
	v := s.View()
	v.Toasts[0].Label = "mutated"
	if s.View().Toasts[0].Label == "mutated" {
		t.Error("View must not alias internal state")
	}
}

func TestBacklog(t *testing.T) {
	s := New()
	s.LoadBacklog([]models.XPEvent{{ID: 1, Amount: 10}, {ID: 2, Amount: 15}})
	v := s.View()
	if v.Backlog == nil || v.Backlog.TotalXP != 25 || len(v.Backlog.Events) != 2 {
		t.Fatalf("backlog = %+v", v.Backlog)
	}
	if !s.DismissBacklog() || s.View().Backlog != nil {
		t.Error("backlog should be dismissed")
	}
	s.LoadBacklog(nil)
	if s.View().Backlog != nil {
		t.Error("empty backlog should not be shown")
	}
}

func TestRun_NotifiesSubscribers(t *testing.T) {
	s := New()
	var mu sync.Mutex
	var seen []string
	unsub := s.Subscribe(func(ev events.Event, eff Effects) {
		mu.Lock()
		seen = append(seen, fmt.Sprintf("%s:%v", ev.Kind(), eff.Invalidate))
		mu.Unlock()
	})

	in := make(chan events.Event, 4)
	in <- events.Connected{}
	in <- events.GoalCreated{}
	close(in)

	if err := s.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !s.View().Connected {
		t.Error("connected flag not set")
	}

	mu.Lock()
	got := fmt.Sprint(seen)
	mu.Unlock()
	if got != "[connected:[] goal_created:[goals/custom]]" {
		t.Errorf("seen = %s", got)
	}

	unsub()
	in2 := make(chan events.Event, 1)
	in2 <- events.Connected{}
	close(in2)
	_ = s.Run(context.Background(), in2)
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("unsubscribed listener still called: %v", seen)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, make(chan events.Event)) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
