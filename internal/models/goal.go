package models

import "time"

// Goal kinds.
const (
	GoalDaily  = "daily"
	GoalCustom = "custom"
)

// Goal is a dashboard goal as served by the upstream API. A Target of 1 is a
// checkbox; anything larger is a counter.
type Goal struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	Target      int        `json:"target"`
	Current     float64    `json:"current"`
	Label       string     `json:"label"`
	Active      bool       `json:"active"`
	GoalDate    *string    `json:"goal_date"`
	CreatedAt   time.Time  `json:"created_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
}
