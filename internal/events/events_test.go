package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/starford/commitquest/internal/apperr"
)

func TestDecoder_Frames(t *testing.T) {
	body := ": keepalive\n\n" +
		"event: connected\ndata: {}\n\n" +
		"event: xp_gained\r\ndata: {\"amount\":10,\r\ndata: \"source\":\"commit\"}\r\n\r\n" +
		"data: plain\n\n" +
		"id: 7\nretry: 100\n\n" +
		"event: partial\ndata: lost"

	dec := NewDecoder(strings.NewReader(body))
	var frames []Frame
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		frames = append(frames, f)
	}

	if len(frames) != 3 {
		t.Fatalf("frames = %+v, want 3", frames)
	}
	if frames[0].Type != "connected" || string(frames[0].Data) != "{}" {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[1].Type != "xp_gained" || string(frames[1].Data) != "{\"amount\":10,\n\"source\":\"commit\"}" {
		t.Errorf("frame 1 data = %q", frames[1].Data)
	}
	if frames[2].Type != "message" || string(frames[2].Data) != "plain" {
		t.Errorf("frame 2 = %+v", frames[2])
	}
}

func TestDecode_Variants(t *testing.T) {
	ev, err := Decode(Frame{Type: "xp_gained", Data: []byte(`{"amount":25,"source":"leetcode_solve","level_up":true,"new_level":4,"total_xp":900}`)})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	xp, ok := ev.(XPGained)
	if !ok || xp.Amount != 25 || !xp.LevelUp || xp.NewLevel != 4 || xp.TotalXP != 900 {
		t.Errorf("xp = %#v", ev)
	}

	ev, _ = Decode(Frame{Type: "goal_updated", Data: []byte(`{"id":3,"type":"custom","completed":true,"xp_awarded":40}`)})
	gu, ok := ev.(GoalUpdated)
	if !ok || gu.ID != 3 || !gu.Completed || gu.XPAwarded != 40 || gu.Goal.Type != "custom" {
		t.Errorf("goal updated = %#v", ev)
	}

	ev, _ = Decode(Frame{Type: "goal_deleted", Data: []byte(`{"id":9}`)})
	if gd, ok := ev.(GoalDeleted); !ok || gd.ID != 9 {
		t.Errorf("goal deleted = %#v", ev)
	}

	ev, _ = Decode(Frame{Type: "streak_frozen", Data: []byte(`{}`)})
	if u, ok := ev.(Unknown); !ok || u.Kind() != "streak_frozen" {
		t.Errorf("unknown = %#v", ev)
	}

	if _, err := Decode(Frame{Type: "xp_gained", Data: []byte(`not json`)}); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestFormatSource(t *testing.T) {
	cases := []struct {
		source string
		meta   map[string]any
		want   string
	}{
		{"commit", nil, "GitHub commit"},
		{"commit", map[string]any{"repo": "octo/widgets"}, "GitHub commit - widgets"},
		{"leetcode_solve", nil, "LeetCode"},
		{"leetcode_solve", map[string]any{"difficulty": "medium"}, "LeetCode Medium"},
		{"leetcode_solve", map[string]any{"difficulty": "élevé"}, "LeetCode Élevé"},
		{"goal_complete", nil, "Goal complete"},
		{"goal_complete", map[string]any{"kind": "daily"}, "Daily quest"},
		{"goal_complete", map[string]any{"difficulty": float64(3)}, "Goal ★★★"},
		{"streak_bonus", nil, "Streak bonus"},
		{"weekly_review", nil, "weekly review"},
	}
	for _, tc := range cases {
		if got := FormatSource(tc.source, tc.meta); got != tc.want {
			t.Errorf("FormatSource(%q, %v) = %q, want %q", tc.source, tc.meta, got, tc.want)
		}
		if got := FormatSource(tc.source, tc.meta); !utf8.ValidString(got) {
			t.Errorf("FormatSource(%q, %v) = %q is not valid UTF-8", tc.source, tc.meta, got)
		}
	}
}

// scriptedOpener returns one body per call; after the script is exhausted
// it blocks until ctx is cancelled.
type scriptedOpener struct {
	mu     sync.Mutex
	bodies []string
	errs   []error
	calls  int
}

func (o *scriptedOpener) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	o.mu.Lock()
	i := o.calls
	o.calls++
	o.mu.Unlock()

	if i < len(o.errs) && o.errs[i] != nil {
		return nil, o.errs[i]
	}
	if i < len(o.bodies) {
		return io.NopCloser(strings.NewReader(o.bodies[i])), nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStream_ReconnectsAndDelivers(t *testing.T) {
	op := &scriptedOpener{
		errs: []error{errors.New("dial refused"), nil, nil},
		bodies: []string{
			"",
			"event: connected\ndata: {}\n\nevent: xp_gained\ndata: {\"amount\":5}\n\n",
			"event: goal_deleted\ndata: {\"id\":2}\n\n",
		},
	}
	s := NewStream(op, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan Event, 8)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-out:
			got = append(got, ev.Kind())
		case <-timeout:
			t.Fatalf("timeout; got %v", got)
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run returned %v after cancel, want nil", err)
	}
	want := "connected,xp_gained,goal_deleted"
	if strings.Join(got, ",") != want {
		t.Errorf("events = %v, want %s", got, want)
	}
}

func TestStream_StopsOnUnauthorized(t *testing.T) {
	op := &scriptedOpener{errs: []error{apperr.ErrUnauthorized}}
	s := NewStream(op, time.Millisecond, quietLogger())

	err := s.Run(context.Background(), make(chan Event, 1))
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}
