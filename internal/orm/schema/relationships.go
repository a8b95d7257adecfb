package schema

import (
	"fmt"
	"strings"
)

// Graph is the foreign key dependency graph between tables. A table depends
// on every table it references; self references are ignored.
type Graph struct {
	nodes []string
	edges map[string][]string // table -> referenced tables
}

// NewGraph builds the graph over tables, keeping their order for ties
func NewGraph(tables []*Table, references map[string]map[string]bool) *Graph {
	g := &Graph{edges: make(map[string][]string)}

	known := make(map[string]bool, len(tables))
	for _, t := range tables {
		g.nodes = append(g.nodes, t.name)
		known[t.name] = true
	}

	for _, name := range g.nodes {
		for _, target := range sortedKeys(references[name]) {
			if target != name && known[target] {
				g.edges[name] = append(g.edges[name], target)
			}
		}
	}

	return g
}

// DetectCycles returns the dependency cycles between distinct tables
func (g *Graph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if !visited[next] {
				dfs(next, path)
				continue
			}
			if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns the tables with dependencies first
func (g *Graph) TopologicalSort() ([]string, error) {
	pending := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string)
	for _, node := range g.nodes {
		pending[node] = len(g.edges[node])
		for _, target := range g.edges[node] {
			dependents[target] = append(dependents[target], node)
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if pending[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range dependents[node] {
			pending[dependent]--
			if pending[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("%w: circular foreign keys: %s", ErrMapping, formatCycles(g.DetectCycles()))
	}

	return result, nil
}

func formatCycles(cycles [][]string) string {
	parts := make([]string, len(cycles))
	for i, cycle := range cycles {
		parts[i] = strings.Join(cycle, " -> ") + " -> " + cycle[0]
	}
	return strings.Join(parts, "; ")
}
