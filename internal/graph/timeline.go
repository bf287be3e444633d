package graph

import (
	"time"

	"github.com/starford/commitquest/internal/models"
)

// DateToY maps a date onto the vertical axis of the main timeline (newest-first).
//
// Dates at or after the newest main commit sit half a row above row 0. Dates
// inside the timeline are linearly interpolated between the two main commits
// that bracket them. Dates older than the whole timeline land half a row below
// the oldest row. The second return is false when main is empty, in which case
// there is no reference axis.
func DateToY(target time.Time, main []models.Commit, rowHeight float64) (float64, bool) {
	if len(main) == 0 {
		return 0, false
	}
	if rowHeight <= 0 {
		rowHeight = DefaultRowHeight
	}
	if !target.Before(main[0].Date) {
		return -0.5 * rowHeight, true
	}
	for i := 0; i < len(main)-1; i++ {
		newer, older := main[i].Date, main[i+1].Date
		if newer.Before(target) || !target.After(older) {
			continue
		}
		var fraction float64
		if span := newer.Sub(older); span > 0 {
			fraction = float64(newer.Sub(target)) / float64(span)
		}
		return (float64(i) + fraction) * rowHeight, true
	}
	return (float64(len(main)) - 0.5) * rowHeight, true
}
