package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/commitquest/internal/graph"
	"github.com/starford/commitquest/internal/graphservice"
	"github.com/starford/commitquest/internal/index"
	"github.com/starford/commitquest/internal/testutil"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	dir, store := testutil.TestSnapshots(t)
	testutil.WriteFile(t, dir, "octo/quest.json", testutil.SnapshotJSON)
	db := testutil.TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	graphs := graphservice.New(store, db, nil, graphservice.Options{CacheTTL: time.Minute}, logger, nil)
	return New(graphs, "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_repos":
		result, err = srv.listRepos(ctx, req)
	case "get_commit_graph":
		result, err = srv.getCommitGraph(ctx, req)
	case "list_branches":
		result, err = srv.listBranches(ctx, req)
	case "get_commit":
		result, err = srv.getCommit(ctx, req)
	case "search_commits":
		result, err = srv.searchCommits(ctx, req)
	case "get_graph_contract":
		result, err = srv.getGraphContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListRepos(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "list_repos", map[string]any{}))
	if !strings.HasPrefix(text, "octo/quest\tsnapshot\t") {
		t.Errorf("list_repos = %q", text)
	}
}

func TestGetCommitGraph(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_commit_graph", map[string]any{"repo": "octo/quest"})
	if r.IsError {
		t.Fatalf("error result: %s", resultText(r))
	}
	var g graph.Graph
	if err := json.Unmarshal([]byte(resultText(r)), &g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.Meta.DefaultBranch != "main" || len(g.Meta.Branches) != 1 || g.Meta.Branches[0] != "feature/xp" {
		t.Errorf("meta = %+v", g.Meta)
	}
}

func TestGetCommitGraph_MissingRepo(t *testing.T) {
	srv := testServer(t)
	if r := callTool(t, srv, "get_commit_graph", map[string]any{}); !r.IsError {
		t.Error("expected error without repo argument")
	}
	if r := callTool(t, srv, "get_commit_graph", map[string]any{"repo": "octo/none"}); !r.IsError {
		t.Error("expected error for unknown repo")
	}
}

func TestListBranches(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "list_branches", map[string]any{"repo": "octo/quest"}))
	if !strings.Contains(text, "feature/xp\t") || !strings.Contains(text, "main\tc3") {
		t.Errorf("list_branches = %q", text)
	}
}

func TestGetCommit(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_commit", map[string]any{"repo": "octo/quest", "sha": "c1"})
	if r.IsError || !strings.Contains(resultText(r), `"initial commit"`) {
		t.Errorf("get_commit = %q", resultText(r))
	}
}

func TestSearchCommits(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "search_commits", map[string]any{"query": "streak"}))
	var hits []index.SearchResult
	if err := json.Unmarshal([]byte(text), &hits); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	if len(hits) != 1 || hits[0].SHA != "c2" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestGraphContract(t *testing.T) {
	srv := testServer(t)
	text := resultText(callTool(t, srv, "get_graph_contract", map[string]any{}))
	if text != GraphFormatContract {
		t.Error("contract tool does not return the contract")
	}

	contents, err := srv.readGraphFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != graphFormatURI {
		t.Errorf("resource contents = %+v", contents[0])
	}
}
