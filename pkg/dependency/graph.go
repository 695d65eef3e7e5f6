package dependency

import "sort"

// Set is a set of task IDs
type Set map[string]struct{}

// Has reports whether id is in the set
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Graph indexes an edge snapshot for repeated queries
type Graph struct {
	preds map[string][]Edge
	succs map[string][]Edge
}

// NewGraph builds an index over edges. The snapshot may contain cycles.
func NewGraph(edges []Edge) *Graph {
	g := &Graph{
		preds: make(map[string][]Edge),
		succs: make(map[string][]Edge),
	}
	for _, e := range edges {
		g.preds[e.SuccessorID] = append(g.preds[e.SuccessorID], e)
		g.succs[e.PredecessorID] = append(g.succs[e.PredecessorID], e)
	}
	return g
}

// Predecessors returns the edges pointing into taskID
func (g *Graph) Predecessors(taskID string) []Edge {
	return g.preds[taskID]
}

// Successors returns the edges leaving taskID
func (g *Graph) Successors(taskID string) []Edge {
	return g.succs[taskID]
}

// Ancestors returns every task reachable by following edges backwards
func (g *Graph) Ancestors(taskID string) Set {
	return g.walk(taskID, func(id string) []string {
		edges := g.preds[id]
		next := make([]string, len(edges))
		for i, e := range edges {
			next[i] = e.PredecessorID
		}
		return next
	})
}

// Descendants returns every task reachable by following edges forwards
func (g *Graph) Descendants(taskID string) Set {
	return g.walk(taskID, func(id string) []string {
		edges := g.succs[id]
		next := make([]string, len(edges))
		for i, e := range edges {
			next[i] = e.SuccessorID
		}
		return next
	})
}

// walk is an iterative DFS from start. Each task is expanded at most once, so it
// runs in O(V+E) and terminates on cyclic snapshots. start is only included
// when it is reached again through a cycle.
func (g *Graph) walk(start string, neighbours func(string) []string) Set {
	visited := make(Set)
	stack := neighbours(start)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Has(id) {
			continue
		}
		visited[id] = struct{}{}
		stack = append(stack, neighbours(id)...)
	}
	return visited
}

// AllAncestors returns the transitive predecessors of taskID in edges
func AllAncestors(taskID string, edges []Edge) Set {
	return NewGraph(edges).Ancestors(taskID)
}

// AllDescendants returns the transitive successors of taskID in edges
func AllDescendants(taskID string, edges []Edge) Set {
	return NewGraph(edges).Descendants(taskID)
}

// WouldCreateCycle reports whether adding candidate to edges closes a cycle,
// that is whether the candidate's predecessor is already reachable from its
// successor.
func WouldCreateCycle(edges []Edge, candidate Edge) bool {
	if candidate.PredecessorID == candidate.SuccessorID {
		return true
	}
	return NewGraph(edges).Descendants(candidate.SuccessorID).Has(candidate.PredecessorID)
}

// FindCycle returns the sorted IDs of tasks that lie on at least one cycle
func FindCycle(edges []Edge) []string {
	g := NewGraph(edges)
	onCycle := make(Set)
	for id := range g.succs {
		if g.Descendants(id).Has(id) {
			onCycle[id] = struct{}{}
		}
	}
	return onCycle.Sorted()
}
