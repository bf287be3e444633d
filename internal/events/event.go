package events

import (
	"encoding/json"
	"fmt"

	"github.com/starford/commitquest/internal/models"
)

// Upstream event type names.
const (
	TypeConnected   = "connected"
	TypeXPGained    = "xp_gained"
	TypeGoalUpdated = "goal_updated"
	TypeGoalCreated = "goal_created"
	TypeGoalDeleted = "goal_deleted"
)

// Event is one decoded upstream event. The concrete type is one of
// Connected, XPGained, GoalUpdated, GoalCreated, GoalDeleted or Unknown.
type Event interface {
	Kind() string
}

// Connected is the hello sent when a stream opens.
type Connected struct{}

// XPGained reports an XP award and the resulting totals.
type XPGained struct {
	Amount   int            `json:"amount"`
	Source   string         `json:"source"`
	LevelUp  bool           `json:"level_up"`
	NewLevel int            `json:"new_level"`
	TotalXP  int            `json:"total_xp"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// GoalUpdated carries the updated goal. XPAwarded is set when completing the
// goal earned XP.
type GoalUpdated struct {
	models.Goal
	XPAwarded int `json:"xp_awarded,omitempty"`
}

// GoalCreated carries a newly created custom goal.
type GoalCreated struct {
	models.Goal
}

// GoalDeleted names a removed goal.
type GoalDeleted struct {
	ID int64 `json:"id"`
}

// Unknown is any event type this client does not understand.
type Unknown struct {
	Name string
	Data json.RawMessage
}

func (Connected) Kind() string   { return TypeConnected }
func (XPGained) Kind() string    { return TypeXPGained }
func (GoalUpdated) Kind() string { return TypeGoalUpdated }
func (GoalCreated) Kind() string { return TypeGoalCreated }
func (GoalDeleted) Kind() string { return TypeGoalDeleted }
func (u Unknown) Kind() string   { return u.Name }

// Decode converts a frame into its typed event.
func Decode(f Frame) (Event, error) {
	switch f.Type {
	case TypeConnected:
		return Connected{}, nil
	case TypeXPGained:
		var e XPGained
		if err := unmarshal(f, &e); err != nil {
			return nil, err
		}
		return e, nil
	case TypeGoalUpdated:
		var e GoalUpdated
		if err := unmarshal(f, &e); err != nil {
			return nil, err
		}
		return e, nil
	case TypeGoalCreated:
		var e GoalCreated
		if err := unmarshal(f, &e); err != nil {
			return nil, err
		}
		return e, nil
	case TypeGoalDeleted:
		var e GoalDeleted
		if err := unmarshal(f, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return Unknown{Name: f.Type, Data: json.RawMessage(f.Data)}, nil
	}
}

func unmarshal(f Frame, v any) error {
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("events: decode %s: %w", f.Type, err)
	}
	return nil
}
