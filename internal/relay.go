package internal

import (
	"github.com/starford/commitquest/internal/events"
	"github.com/starford/commitquest/internal/goals"
	"github.com/starford/commitquest/internal/optimistic"
	"github.com/starford/commitquest/internal/session"
	"github.com/starford/commitquest/internal/sse"
)

// publisher is the part of the broker the relays need.
type publisher interface {
	Publish(ev sse.Event)
}

// sessionRelay forwards reconciled upstream events to local subscribers and
// keeps the goal cache in step with them.
func sessionRelay(pub publisher, gs *goals.Service) session.Listener {
	return func(ev events.Event, eff session.Effects) {
		if created, ok := ev.(events.GoalCreated); ok {
			gs.Created(created.Goal)
		}
		for _, key := range eff.Invalidate {
			gs.Invalidate(key)
			pub.Publish(sse.Event{Type: sse.TypeGoalsInvalidated, Data: map[string]string{"key": key}})
		}
		if eff.Toast != nil {
			pub.Publish(sse.Event{Type: sse.TypeXPGained, Data: eff.Toast})
		}
		if eff.LevelUp > 0 {
			pub.Publish(sse.Event{Type: sse.TypeLevelUp, Data: map[string]int{"level": eff.LevelUp}})
		}
	}
}

// rollbackRelay tells renderers that an optimistic goal change was reverted.
func rollbackRelay(pub publisher) func(optimistic.Rollback) {
	return func(rb optimistic.Rollback) {
		pub.Publish(sse.Event{Type: sse.TypeGoalsRollback, Data: map[string]string{
			"mutation": rb.ID,
			"key":      rb.Key,
			"error":    rb.Err.Error(),
		}})
	}
}
