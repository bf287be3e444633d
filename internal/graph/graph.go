// Package graph lays out a repository's commit history as a positioned
// node/edge graph ready for direct rendering.
//
// The main branch forms a single vertical lane with the newest commit at the
// top. Each selected feature branch gets its own lane to the right, and its
// commits are placed vertically by interpolating their timestamps against the
// main timeline, so work that happened concurrently lines up visually.
package graph

import "time"

// NodeKind tags what a node renders as.
type NodeKind string

// Node kinds.
const (
	KindCommit      NodeKind = "commit"
	KindMilestone   NodeKind = "milestone"
	KindBranchLabel NodeKind = "branch-label"
)

// EdgeStyle distinguishes solid same-branch lines from dashed divergence lines.
type EdgeStyle string

// Edge styles.
const (
	StyleLinear EdgeStyle = "linear"
	StyleFork   EdgeStyle = "fork"
	StyleMerge  EdgeStyle = "merge"
)

// Position is a 2-D coordinate. Y grows downward.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CommitData is the payload of a KindCommit node.
type CommitData struct {
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	Date         time.Time `json:"date"`
	Branch       string    `json:"branch"`
	Lane         int       `json:"lane"`
	IsHead       bool      `json:"isHead"`
	IsBranchHead bool      `json:"isBranchHead"`
	// Milestone is the milestone level drawn as a badge on this commit, 0 for none.
	Milestone int `json:"milestone,omitempty"`
}

// LabelData is the payload of a KindBranchLabel node.
type LabelData struct {
	Branch    string `json:"branch"`
	IsDefault bool   `json:"isDefault"`
}

// Node is a render-ready entity. Data holds a CommitData or LabelData value.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     any      `json:"data"`
}

// Edge is a directed visual connector between two nodes.
type Edge struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Target string    `json:"target"`
	Style  EdgeStyle `json:"style"`
	Branch string    `json:"branch"`
}

// Meta describes the parameters a layout was computed with.
type Meta struct {
	DefaultBranch string   `json:"defaultBranch"`
	Branches      []string `json:"branches"`
	RowHeight     float64  `json:"rowHeight"`
	LaneWidth     float64  `json:"laneWidth"`
}

// Graph is the output of a layout computation. Callers own it and treat it as
// immutable; a new Graph is produced on every computation.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	Meta  Meta   `json:"meta"`
}

// Options controls layout geometry. Zero fields take the defaults.
type Options struct {
	RowHeight          float64 `yaml:"row_height"`
	LaneWidth          float64 `yaml:"lane_width"`
	LabelOffset        float64 `yaml:"label_offset"`
	MaxFeatureBranches int     `yaml:"max_feature_branches"`
	MilestoneEvery     int     `yaml:"milestone_every"`
}

// Default geometry.
const (
	DefaultRowHeight          = 80
	DefaultLaneWidth          = 120
	DefaultLabelOffset        = 56
	DefaultMaxFeatureBranches = 3
	DefaultMilestoneEvery     = 10
)

// DefaultOptions returns the default layout geometry.
func DefaultOptions() Options {
	return Options{
		RowHeight:          DefaultRowHeight,
		LaneWidth:          DefaultLaneWidth,
		LabelOffset:        DefaultLabelOffset,
		MaxFeatureBranches: DefaultMaxFeatureBranches,
		MilestoneEvery:     DefaultMilestoneEvery,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RowHeight <= 0 {
		o.RowHeight = d.RowHeight
	}
	if o.LaneWidth <= 0 {
		o.LaneWidth = d.LaneWidth
	}
	if o.LabelOffset <= 0 {
		o.LabelOffset = d.LabelOffset
	}
	if o.MaxFeatureBranches <= 0 {
		o.MaxFeatureBranches = d.MaxFeatureBranches
	}
	if o.MilestoneEvery <= 0 {
		o.MilestoneEvery = d.MilestoneEvery
	}
	return o
}

// AheadOffset is the y assigned to dates at or after the newest main commit:
// half a row above row 0.
func (o Options) AheadOffset() float64 {
	return -0.5 * o.withDefaults().RowHeight
}
