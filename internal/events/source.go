package events

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var sourceLabels = map[string]string{
	"commit":         "GitHub commit",
	"leetcode_solve": "LeetCode",
	"goal_complete":  "Goal complete",
	"streak_bonus":   "Streak bonus",
}

// FormatSource renders a human label for an XP source. meta may be nil.
func FormatSource(source string, meta map[string]any) string {
	switch source {
	case "commit":
		if repo, _ := meta["repo"].(string); repo != "" {
			return sourceLabels[source] + " - " + repo[strings.LastIndex(repo, "/")+1:]
		}
	case "leetcode_solve":
		if diff, _ := meta["difficulty"].(string); diff != "" {
			return sourceLabels[source] + " " + capitalize(diff)
		}
	case "goal_complete":
		if kind, _ := meta["kind"].(string); kind == "daily" {
			return "Daily quest"
		}
		if n, ok := meta["difficulty"].(float64); ok && n >= 1 {
			return "Goal " + strings.Repeat("★", int(n))
		}
	}
	if label, ok := sourceLabels[source]; ok {
		return label
	}
	return strings.ReplaceAll(source, "_", " ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
