package graph

import (
	"sort"
	"strings"
)

// FindCycles enumerates every simple cycle of length greater than one,
// each reported exactly once, rooted at its smallest node id. Self-loop
// edges are excluded up front. The enumeration is Johnson's algorithm:
// for each nontrivial strongly connected component, all circuits through
// the component's smallest node are collected with blocked-set pruning,
// then that node is removed and the remainder's components are requeued.
func (g *Graph) FindCycles() [][]string {
	adj := make(map[string][]string, len(g.succ))
	for id, edges := range g.succ {
		for _, e := range edges {
			if e.To != id {
				adj[id] = append(adj[id], e.To)
			}
		}
	}
	for id := range adj {
		sort.Strings(adj[id])
	}

	var cycles [][]string
	work := sccsOf(g.sortedNodeIDs(), adj)

	for len(work) > 0 {
		scc := work[len(work)-1]
		work = work[:len(work)-1]

		in := make(map[string]bool, len(scc))
		for _, id := range scc {
			in[id] = true
		}
		start := scc[0]

		blocked := make(map[string]bool)
		blockedBy := make(map[string]map[string]bool)
		var stack []string

		var unblock func(id string)
		unblock = func(id string) {
			blocked[id] = false
			for w := range blockedBy[id] {
				delete(blockedBy[id], w)
				if blocked[w] {
					unblock(w)
				}
			}
		}

		var circuit func(v string) bool
		circuit = func(v string) bool {
			found := false
			stack = append(stack, v)
			blocked[v] = true

			for _, w := range adj[v] {
				if !in[w] {
					continue
				}
				if w == start {
					cycle := make([]string, len(stack))
					copy(cycle, stack)
					cycles = append(cycles, cycle)
					found = true
				} else if !blocked[w] && circuit(w) {
					found = true
				}
			}

			if found {
				unblock(v)
			} else {
				// v found no circuit; unblock it only once a neighbor does.
				for _, w := range adj[v] {
					if !in[w] {
						continue
					}
					if blockedBy[w] == nil {
						blockedBy[w] = make(map[string]bool)
					}
					blockedBy[w][v] = true
				}
			}

			stack = stack[:len(stack)-1]
			return found
		}
		circuit(start)

		if rest := scc[1:]; len(rest) > 1 {
			work = append(work, sccsOf(rest, adj)...)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], "\x00") < strings.Join(cycles[j], "\x00")
	})
	return cycles
}

// sccsOf returns the strongly connected components of size greater than
// one among ids, using only edges between ids. Each component comes back
// sorted so its smallest node leads.
func sccsOf(ids []string, adj map[string][]string) [][]string {
	in := make(map[string]bool, len(ids))
	for _, id := range ids {
		in[id] = true
	}

	index := make(map[string]int, len(ids))
	low := make(map[string]int, len(ids))
	onStack := make(map[string]bool)
	var stack []string
	next := 0
	var comps [][]string

	var strong func(v string)
	strong = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if !in[w] {
				continue
			}
			if _, seen := index[w]; !seen {
				strong(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] && index[w] < low[v] {
				low[v] = index[w]
			}
		}

		if low[v] == index[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 {
				sort.Strings(comp)
				comps = append(comps, comp)
			}
		}
	}

	for _, id := range ids {
		if _, seen := index[id]; !seen {
			strong(id)
		}
	}
	return comps
}

func (g *Graph) sortedNodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
