// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes commitquest tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/commitquest/internal/graphservice"
)

const graphFormatURI = "commitquest://graph-format"

// Server wraps the MCP server with commitquest tools.
type Server struct {
	mcp    *server.MCPServer
	graphs *graphservice.Service
}

// New creates a new MCP server with all commitquest tools registered.
func New(graphs *graphservice.Service, version string) *Server {
	s := &Server{graphs: graphs}

	s.mcp = server.NewMCPServer(
		"commitquest",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_repos",
		mcp.WithDescription("List repos with cached commit history, with their source and fetch time."),
	), s.listRepos)

	s.mcp.AddTool(mcp.NewTool("get_commit_graph",
		mcp.WithDescription("Return the positioned commit graph of a repo. "+
			"Read the layout contract first via get_graph_contract or the "+
			graphFormatURI+" resource."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repo as owner/name")),
	), s.getCommitGraph)

	s.mcp.AddTool(mcp.NewTool("list_branches",
		mcp.WithDescription("List the branches of a repo with their head commit and date."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repo as owner/name")),
	), s.listBranches)

	s.mcp.AddTool(mcp.NewTool("get_commit",
		mcp.WithDescription("Return one commit with change statistics when available."),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repo as owner/name")),
		mcp.WithString("sha", mcp.Required(), mcp.Description("Commit sha")),
	), s.getCommit)

	s.mcp.AddTool(mcp.NewTool("search_commits",
		mcp.WithDescription("Search cached commits by message, author, or sha prefix."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchCommits)

	s.mcp.AddTool(mcp.NewTool("get_graph_contract",
		mcp.WithDescription("Returns the commit graph layout contract."),
	), s.getGraphContract)

	// Resource: graph layout contract.
	s.mcp.AddResource(
		mcp.NewResource(graphFormatURI, "Graph Format Contract",
			mcp.WithResourceDescription("Node, edge and coordinate rules of the commit graph layout."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGraphFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRepos(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.graphs.Repos(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(repos) == 0 {
		return mcp.NewToolResultText("no repos cached"), nil
	}
	lines := make([]string, 0, len(repos))
	for _, r := range repos {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s", r.Repo, r.Source, r.FetchedAt.Format("2006-01-02T15:04:05Z07:00")))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getCommitGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.graphs.Graph(ctx, repo)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(g)
}

func (s *Server) listBranches(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	branches, err := s.graphs.Branches(ctx, repo)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(branches))
	for _, b := range branches {
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d commits", b.Name, b.SHA, len(b.Commits)))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getCommit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repo, err := req.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sha, err := req.RequireString("sha")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.graphs.Commit(ctx, repo, sha)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(c)
}

func (s *Server) searchCommits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 20)
	hits, err := s.graphs.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits)
}

func (s *Server) getGraphContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(GraphFormatContract), nil
}

func (s *Server) readGraphFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      graphFormatURI,
			MIMEType: "text/markdown",
			Text:     GraphFormatContract,
		},
	}, nil
}
