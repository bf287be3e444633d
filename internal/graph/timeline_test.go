package graph

import (
	"testing"
	"time"

	"github.com/starford/commitquest/internal/models"
)

func day(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			panic(err)
		}
	}
	return t
}

func mainline(dates ...string) []models.Commit {
	out := make([]models.Commit, len(dates))
	for i, d := range dates {
		out[i] = models.Commit{SHA: "m" + d, Date: day(d)}
	}
	return out
}

func TestDateToY_Empty(t *testing.T) {
	if _, ok := DateToY(time.Now(), nil, 80); ok {
		t.Fatal("expected no axis for empty timeline")
	}
}

func TestDateToY_AheadOfTimeline(t *testing.T) {
	main := mainline("2024-01-03", "2024-01-02", "2024-01-01")
	y, ok := DateToY(main[0].Date, main, 80)
	if !ok {
		t.Fatal("expected axis")
	}
	if y >= 0 {
		t.Fatalf("y at newest main date = %v, want negative", y)
	}
	later, _ := DateToY(main[0].Date.Add(48*time.Hour), main, 80)
	if later != y {
		t.Errorf("y after newest = %v, want %v", later, y)
	}
	if y != -40 {
		t.Errorf("ahead offset = %v, want -40", y)
	}
}

func TestDateToY_Interpolates(t *testing.T) {
	main := mainline("2024-01-03", "2024-01-02", "2024-01-01")

	y, _ := DateToY(day("2024-01-02T12:00:00Z"), main, 80)
	if y <= 0 || y >= 80 {
		t.Fatalf("y = %v, want strictly between 0 and 80", y)
	}
	if y != 40 {
		t.Errorf("y = %v, want 40 (halfway between rows 0 and 1)", y)
	}

	// A date equal to a main commit lands exactly on that commit's row.
	y, _ = DateToY(day("2024-01-02"), main, 80)
	if y != 80 {
		t.Errorf("y on row 1 date = %v, want 80", y)
	}
}

func TestDateToY_OlderThanTimeline(t *testing.T) {
	main := mainline("2024-01-03", "2024-01-02", "2024-01-01")
	y, _ := DateToY(day("2023-12-01"), main, 80)
	if want := 2.5 * 80; y != want {
		t.Errorf("y = %v, want %v", y, want)
	}
	y, _ = DateToY(day("2024-01-01"), main, 80)
	if want := 2.5 * 80; y != want {
		t.Errorf("y on oldest date = %v, want %v", y, want)
	}
}

func TestDateToY_ZeroSpan(t *testing.T) {
	main := mainline("2024-01-03", "2024-01-02", "2024-01-02", "2024-01-01")
	y, _ := DateToY(day("2024-01-01T12:00:00Z"), main, 80)
	if y < 160 || y > 240 {
		t.Errorf("y = %v, want within rows 2..3", y)
	}
}

func TestDateToY_MonotonicBackwards(t *testing.T) {
	main := mainline("2024-01-10", "2024-01-08", "2024-01-07", "2024-01-03", "2024-01-02", "2024-01-01")
	prev := -1e9
	for ts := main[0].Date; !ts.Before(main[len(main)-1].Date); ts = ts.Add(-3 * time.Hour) {
		y, _ := DateToY(ts, main, 80)
		if y < prev {
			t.Fatalf("y decreased at %s: %v < %v", ts, y, prev)
		}
		prev = y
	}
}
