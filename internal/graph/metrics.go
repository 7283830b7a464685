package graph

import "sort"

// RankedNode pairs a node id with the score it was ranked by.
type RankedNode struct {
	ID    string `json:"id"`
	Score int    `json:"score"`
}

// Metrics summarizes the graph shape.
type Metrics struct {
	NodeCount          int          `json:"node_count"`
	EdgeCount          int          `json:"edge_count"`
	AvgDegree          float64      `json:"avg_degree"`
	MaxInDegree        int          `json:"max_in_degree"`
	MaxOutDegree       int          `json:"max_out_degree"`
	CycleCount         int          `json:"cycle_count"`
	WeakComponentCount int          `json:"weak_component_count"`
	TopComplex         []RankedNode `json:"top_complex"`
	TopConnected       []RankedNode `json:"top_connected"`
}

const topN = 10

// ComputeMetrics walks nodes and edges once (plus the cycle scan).
func (g *Graph) ComputeMetrics() Metrics {
	m := Metrics{
		NodeCount: len(g.nodes),
		EdgeCount: g.edgeCount,
	}
	if m.NodeCount == 0 {
		return m
	}

	m.AvgDegree = float64(g.edgeCount) / float64(m.NodeCount)

	var complexRank, connectedRank []RankedNode
	for id, node := range g.nodes {
		in := len(g.pred[id])
		out := len(g.succ[id])
		if in > m.MaxInDegree {
			m.MaxInDegree = in
		}
		if out > m.MaxOutDegree {
			m.MaxOutDegree = out
		}
		complexRank = append(complexRank, RankedNode{ID: id, Score: node.Complexity})
		connectedRank = append(connectedRank, RankedNode{ID: id, Score: in + out})
	}

	m.TopComplex = topRanked(complexRank)
	m.TopConnected = topRanked(connectedRank)
	m.CycleCount = len(g.FindCycles())
	m.WeakComponentCount = g.weakComponents()
	return m
}

// topRanked sorts descending by score (id ascending on ties) and keeps
// the first ten.
func topRanked(ranked []RankedNode) []RankedNode {
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// weakComponents counts connected components ignoring edge direction.
func (g *Graph) weakComponents() int {
	parent := make(map[string]string, len(g.nodes))
	for id := range g.nodes {
		parent[id] = id
	}

	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for from, edges := range g.succ {
		for _, e := range edges {
			union(from, e.To)
		}
	}

	roots := make(map[string]bool)
	for id := range g.nodes {
		roots[find(id)] = true
	}
	return len(roots)
}
