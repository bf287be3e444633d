package mcpserver

// GraphFormatContract describes the layout returned by get_commit_graph and
// GET /api/repos/{owner}/{repo}/graph.
const GraphFormatContract = `# commitquest Graph Format

A graph is ` + "`" + `{"nodes": [...], "edges": [...], "meta": {...}}` + "`" + `. Coordinates are
pixels: x grows to the right, y grows downward. Row 0 is the newest commit on
the default branch.

## Nodes

| field      | meaning                                              |
|------------|------------------------------------------------------|
| id         | commit sha (default lane), ` + "`" + `<sha>@<branch>` + "`" + ` (feature lanes), ` + "`" + `label:<branch>` + "`" + ` |
| type       | ` + "`" + `commit` + "`" + ` or ` + "`" + `branch-label` + "`" + `                               |
| position   | ` + "`" + `{"x": float, "y": float}` + "`" + `                              |
| data       | payload, see below                                   |

Commit data: ` + "`" + `sha, message, author, date, branch, lane, isHead, isBranchHead` + "`" + `
and ` + "`" + `milestone` + "`" + ` (level; absent when the commit is not a milestone).
Label data: ` + "`" + `branch, isDefault` + "`" + `.

## Edges

| field  | meaning                                                       |
|--------|---------------------------------------------------------------|
| id     | ` + "`" + `linear:<source>-><target>` + "`" + ` or ` + "`" + `fork:<branch>` + "`" + `               |
| style  | ` + "`" + `linear` + "`" + ` joins consecutive commits of one lane; ` + "`" + `fork` + "`" + ` (dashed) joins a default-lane commit to the oldest commit of a feature branch |
| branch | owning lane, used for colour                                   |

## Layout rules

1. The default lane sits at x = 0; commit i is at y = i * rowHeight.
2. Up to three feature branches, most recent head first, occupy lanes 1..3 at
   x = lane * laneWidth. Other branches are not drawn.
3. A feature commit's y interpolates between the two default-lane commits
   whose dates bracket it. Commits newer than the default head sit above
   row 0; commits older than every default-lane commit sit half a row below
   the last one.
4. Every tenth default-lane commit (except the last) is a milestone of level
   (i + 1) / 10.
5. An empty default lane yields an empty graph.

` + "`" + `meta` + "`" + ` carries ` + "`" + `defaultBranch` + "`" + `, the drawn ` + "`" + `branches` + "`" + `, ` + "`" + `rowHeight` + "`" + ` and ` + "`" + `laneWidth` + "`" + `.
`
