// Package backend is a client for the upstream dashboard API: goals, the
// XP event backlog, and the event stream endpoint.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/models"
)

// Client talks to the dashboard API with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	// stream has no timeout; the event stream is long-lived.
	stream *http.Client
}

// New creates a Client. hc may be nil.
func New(baseURL, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    hc,
		stream:  &http.Client{Transport: hc.Transport},
	}
}

// DailyGoals returns today's daily quests.
func (c *Client) DailyGoals(ctx context.Context) ([]models.Goal, error) {
	var out []models.Goal
	if err := c.do(ctx, http.MethodGet, "/api/goals/daily", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CustomGoals returns the active custom goals, newest first.
func (c *Client) CustomGoals(ctx context.Context) ([]models.Goal, error) {
	var out []models.Goal
	if err := c.do(ctx, http.MethodGet, "/api/goals/", &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

// CompleteGoal marks a custom goal complete.
func (c *Client) CompleteGoal(ctx context.Context, id int64) (*models.Goal, error) {
	var g models.Goal
	if err := c.do(ctx, http.MethodPatch, goalPath(id, "complete"), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// IncrementGoal bumps a counter goal by one.
func (c *Client) IncrementGoal(ctx context.Context, id int64) (*models.Goal, error) {
	var g models.Goal
	if err := c.do(ctx, http.MethodPatch, goalPath(id, "increment"), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGoal removes a goal.
func (c *Client) DeleteGoal(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, goalPath(id, ""), nil)
}

// Unread returns XP events earned while no client was connected, oldest first.
func (c *Client) Unread(ctx context.Context) ([]models.XPEvent, error) {
	var out []models.XPEvent
	if err := c.do(ctx, http.MethodGet, "/api/events/unread", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.XPEvent{}
	}
	return out, nil
}

// MarkRead acknowledges the unread backlog.
func (c *Client) MarkRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/events/mark-read", nil)
}

// ClearLevelUp acknowledges a pending level-up.
func (c *Client) ClearLevelUp(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/clear-level-up", nil)
}

// OpenStream opens the server-sent event stream. The endpoint only accepts
// the token as a query parameter. The caller closes the body.
func (c *Client) OpenStream(ctx context.Context) (io.ReadCloser, error) {
	u := c.baseURL + "/api/events/stream?" + url.Values{"token": {c.token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("backend: build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: open stream: %w: %w", apperr.ErrUpstream, err)
	}
	if err := statusErr("GET /api/events/stream", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w: %w", method, path, apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if err := statusErr(method+" "+path, resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode %s: %w", path, err)
	}
	return nil
}

func statusErr(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("backend: %s: %w", op, apperr.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("backend: %s: %w", op, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("backend: %s: %w: %s", op, apperr.ErrConflict, detail(resp.Body))
	default:
		return fmt.Errorf("backend: %s: %w: status %d", op, apperr.ErrUpstream, resp.StatusCode)
	}
}

// detail extracts the FastAPI-style {"detail": "..."} message when present.
func detail(r io.Reader) string {
	var body struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body)
	return body.Detail
}

func goalPath(id int64, action string) string {
	p := "/api/goals/" + strconv.FormatInt(id, 10)
	if action != "" {
		p += "/" + action
	}
	return p
}

func nonNil(g []models.Goal) []models.Goal {
	if g == nil {
		return []models.Goal{}
	}
	return g
}
