// Package session reconciles the dashboard event stream into explicit
// local state: XP totals, toast notifications, the level-up banner, the
// offline catch-up backlog, and cache invalidation.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/starford/commitquest/internal/events"
	"github.com/starford/commitquest/internal/models"
)

// MaxToasts bounds the toast queue; older toasts are dropped first.
const MaxToasts = 20

// Cache keys invalidated by goal events.
const (
	KeyGoals       = "goals"
	KeyCustomGoals = "goals/custom"
)

// Toast is one XP notification.
type Toast struct {
	ID     uint64    `json:"id"`
	Amount int       `json:"amount"`
	Label  string    `json:"label"`
	At     time.Time `json:"at"`
}

// Backlog summarises XP earned while no client was connected.
type Backlog struct {
	Events  []models.XPEvent `json:"events"`
	TotalXP int              `json:"total_xp"`
}

// View is a point-in-time copy of the session state.
type View struct {
	Connected      bool     `json:"connected"`
	TotalXP        int      `json:"total_xp"`
	Level          int      `json:"level"`
	Toasts         []Toast  `json:"toasts"`
	PendingLevelUp int      `json:"pending_level_up,omitempty"`
	Backlog        *Backlog `json:"backlog,omitempty"`
}

// Effects describes what applying one event changed.
type Effects struct {
	Toast      *Toast
	LevelUp    int
	Invalidate []string
}

// Listener observes every applied event. Listeners run on the consumer
// goroutine and must not block.
type Listener func(ev events.Event, eff Effects)

// State is the reconciled session. Apply is meant to be driven by a single
// consumer (Run); readers may call View concurrently.
type State struct {
	mu      sync.RWMutex
	view    View
	toastID uint64

	subMu   sync.Mutex
	subs    map[int]Listener
	nextSub int

	now func() time.Time
}

// New creates an empty State.
func New() *State {
	return &State{
		view: View{Toasts: []Toast{}},
		subs: make(map[int]Listener),
		now:  time.Now,
	}
}

// Apply folds one event into the state and reports its effects.
func (s *State) Apply(ev events.Event) Effects {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eff Effects
	switch e := ev.(type) {
	case events.Connected:
		s.view.Connected = true

	case events.XPGained:
		s.view.TotalXP = e.TotalXP
		s.view.Level = e.NewLevel

		s.toastID++
		t := Toast{
			ID:     s.toastID,
			Amount: e.Amount,
			Label:  events.FormatSource(e.Source, e.Meta),
			At:     s.now(),
		}
		s.view.Toasts = append(s.view.Toasts, t)
		if over := len(s.view.Toasts) - MaxToasts; over > 0 {
			s.view.Toasts = append([]Toast(nil), s.view.Toasts[over:]...)
		}
		eff.Toast = &t

		if e.LevelUp && e.NewLevel > s.view.PendingLevelUp {
			s.view.PendingLevelUp = e.NewLevel
			eff.LevelUp = e.NewLevel
		}

	case events.GoalUpdated:
		eff.Invalidate = []string{KeyGoals}

	case events.GoalCreated, events.GoalDeleted:
		eff.Invalidate = []string{KeyCustomGoals}
	}
	return eff
}

// View returns a copy of the current state.
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.view
	v.Toasts = append([]Toast(nil), s.view.Toasts...)
	if s.view.Backlog != nil {
		b := *s.view.Backlog
		b.Events = append([]models.XPEvent(nil), b.Events...)
		v.Backlog = &b
	}
	return v
}

// DismissLevelUp clears the level-up banner. It reports whether one was shown.
func (s *State) DismissLevelUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.view.PendingLevelUp > 0
	s.view.PendingLevelUp = 0
	return had
}

// LoadBacklog records the offline XP backlog. An empty list clears it.
func (s *State) LoadBacklog(evts []models.XPEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(evts) == 0 {
		s.view.Backlog = nil
		return
	}
	b := &Backlog{Events: append([]models.XPEvent(nil), evts...)}
	for _, e := range evts {
		b.TotalXP += e.Amount
	}
	s.view.Backlog = b
}

// DismissBacklog clears the backlog. It reports whether one was shown.
func (s *State) DismissBacklog() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.view.Backlog != nil
	s.view.Backlog = nil
	return had
}

// Subscribe registers fn and returns a function that removes it.
func (s *State) Subscribe(fn Listener) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Run applies events from in until ctx is cancelled or in is closed.
func (s *State) Run(ctx context.Context, in <-chan events.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			eff := s.Apply(ev)
			s.notify(ev, eff)
		}
	}
}

func (s *State) notify(ev events.Event, eff Effects) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(ev, eff)
	}
}
