package graph

import (
	"math"
	"sort"
	"strconv"

	"github.com/starford/commitquest/internal/models"
)

// Compute lays out main (newest-first) and its branches.
//
// Compute is pure: identical inputs always yield structurally identical
// graphs, and concurrent calls do not interact. An empty main timeline yields
// an empty graph because branch placement has no axis to interpolate against.
func Compute(main []models.Commit, branches []models.Branch, opts Options) *Graph {
	opts = opts.withDefaults()
	g := &Graph{
		Nodes: []Node{},
		Edges: []Edge{},
		Meta: Meta{
			Branches:  []string{},
			RowHeight: opts.RowHeight,
			LaneWidth: opts.LaneWidth,
		},
	}

	defaultName := DefaultBranch(main, branches)
	g.Meta.DefaultBranch = defaultName
	if len(main) == 0 {
		return g
	}

	mainIDs := nodeIDs(main, func(c models.Commit) string { return c.SHA })
	last := len(main) - 1
	for i, c := range main {
		data := CommitData{
			SHA:     c.SHA,
			Message: c.Message,
			Author:  c.Author,
			Date:    c.Date,
			Branch:  defaultName,
			IsHead:  i == 0,
		}
		if (i+1)%opts.MilestoneEvery == 0 && i != last {
			data.Milestone = (i + 1) / opts.MilestoneEvery
		}
		g.Nodes = append(g.Nodes, Node{
			ID:       mainIDs[i],
			Type:     KindCommit,
			Position: Position{X: 0, Y: float64(i) * opts.RowHeight},
			Data:     data,
		})
		if i > 0 {
			g.Edges = append(g.Edges, linearEdge(mainIDs[i-1], mainIDs[i], defaultName))
		}
	}
	g.Nodes = append(g.Nodes, labelNode(defaultName, true, Position{X: 0, Y: -opts.LabelOffset}))

	for b, br := range SelectFeatureBranches(branches, defaultName, opts.MaxFeatureBranches) {
		g.Meta.Branches = append(g.Meta.Branches, br.Name)
		layoutBranch(g, mainIDs, main, br, b+1, opts)
	}
	return g
}

// layoutBranch adds one feature branch lane. lane is 1-based; lane 0 is main.
func layoutBranch(g *Graph, mainIDs []string, main []models.Commit, br models.Branch, lane int, opts Options) {
	x := float64(lane) * opts.LaneWidth
	ids := nodeIDs(br.Commits, func(c models.Commit) string { return branchNodeID(br.Name, c.SHA) })
	var headY, oldestY float64
	var prevID string

	for i, c := range br.Commits {
		y, _ := DateToY(c.Date, main, opts.RowHeight)
		id := ids[i]
		g.Nodes = append(g.Nodes, Node{
			ID:       id,
			Type:     KindCommit,
			Position: Position{X: x, Y: y},
			Data: CommitData{
				SHA:          c.SHA,
				Message:      c.Message,
				Author:       c.Author,
				Date:         c.Date,
				Branch:       br.Name,
				Lane:         lane,
				IsBranchHead: i == 0,
			},
		})
		if i == 0 {
			headY = y
		} else {
			g.Edges = append(g.Edges, linearEdge(prevID, id, br.Name))
		}
		prevID = id
		oldestY = y
	}

	forkIndex := clamp(int(math.Round(oldestY/opts.RowHeight)), 0, len(main)-1)
	g.Edges = append(g.Edges, Edge{
		ID:     "fork:" + br.Name,
		Source: mainIDs[forkIndex],
		Target: prevID,
		Style:  StyleFork,
		Branch: br.Name,
	})
	g.Nodes = append(g.Nodes, labelNode(br.Name, false, Position{X: x, Y: headY - opts.LabelOffset}))
}

// DefaultBranch picks the branch that represents main: the branch whose head
// is the newest main commit, else one named "main" or "master", else "main".
// When several branches point at the main head, "main"/"master" win, then the
// lexicographically smallest name.
func DefaultBranch(main []models.Commit, branches []models.Branch) string {
	if len(main) > 0 {
		var match string
		for _, b := range branches {
			if b.SHA != main[0].SHA {
				continue
			}
			if b.Name == "main" || b.Name == "master" {
				return b.Name
			}
			if match == "" || b.Name < match {
				match = b.Name
			}
		}
		if match != "" {
			return match
		}
	}
	for _, name := range []string{"main", "master"} {
		for _, b := range branches {
			if b.Name == name {
				return name
			}
		}
	}
	return "main"
}

// SelectFeatureBranches returns at most max non-default branches with commits,
// most recently active first. Ties on head date break by name. Duplicate names
// keep the first occurrence.
func SelectFeatureBranches(branches []models.Branch, defaultName string, max int) []models.Branch {
	seen := make(map[string]struct{}, len(branches))
	var out []models.Branch
	for _, b := range branches {
		if _, dup := seen[b.Name]; dup {
			continue
		}
		seen[b.Name] = struct{}{}
		if b.Name == defaultName || len(b.Commits) == 0 {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	if max >= 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// nodeIDs returns one id per commit. A repeated sha keeps its base id on the
// first occurrence and gets a "#<index>" suffix after that.
func nodeIDs(commits []models.Commit, base func(models.Commit) string) []string {
	ids := make([]string, len(commits))
	seen := make(map[string]struct{}, len(commits))
	for i, c := range commits {
		id := base(c)
		if _, dup := seen[id]; dup {
			id += "#" + strconv.Itoa(i)
		}
		seen[id] = struct{}{}
		ids[i] = id
	}
	return ids
}

func branchNodeID(branch, sha string) string {
	return sha + "@" + branch
}

func linearEdge(source, target, branch string) Edge {
	return Edge{
		ID:     "linear:" + source + "->" + target,
		Source: source,
		Target: target,
		Style:  StyleLinear,
		Branch: branch,
	}
}

func labelNode(branch string, isDefault bool, pos Position) Node {
	return Node{
		ID:       "label:" + branch,
		Type:     KindBranchLabel,
		Position: pos,
		Data:     LabelData{Branch: branch, IsDefault: isDefault},
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
