package models

import "time"

// XPEvent is an XP award recorded upstream, as listed by the unread backlog.
type XPEvent struct {
	ID        int64          `json:"id"`
	Source    string         `json:"source"`
	Amount    int            `json:"amount"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}
