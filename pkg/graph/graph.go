package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a dependency graph over string-identified resources. An edge
// records that one resource must be provisioned after another. The zero
// ordering question never arises: ties are always broken lexicographically
// so the same graph sorts the same way everywhere.
type Graph struct {
	nodes map[string]bool
	deps  map[string]map[string]bool
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodes: make(map[string]bool),
		deps:  make(map[string]map[string]bool),
	}
}

// AddNode registers a resource. Adding the same node twice is harmless.
func (g *Graph) AddNode(id string) {
	g.nodes[id] = true
}

// AddDependency records that id must be provisioned after dep. Both
// endpoints are registered implicitly.
func (g *Graph) AddDependency(id, dep string) {
	g.AddNode(id)
	g.AddNode(dep)
	if g.deps[id] == nil {
		g.deps[id] = make(map[string]bool)
	}
	g.deps[id][dep] = true
}

// HasNode reports whether the resource is registered.
func (g *Graph) HasNode(id string) bool {
	return g.nodes[id]
}

// Nodes returns all registered resources in lexical order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// DependenciesOf returns id's direct dependencies in lexical order.
func (g *Graph) DependenciesOf(id string) []string {
	out := make([]string, 0, len(g.deps[id]))
	for dep := range g.deps[id] {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

// Sort returns every resource in provisioning order: dependencies first,
// lexical order between unordered peers. A cycle is a hard error naming the
// resources involved; it is never resolved by retry or arbitrary breaking.
func (g *Graph) Sort() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = len(g.deps[id])
	}
	// Reverse adjacency: dep -> dependents whose indegree drops when dep
	// is provisioned.
	dependents := make(map[string][]string)
	for id, deps := range g.deps {
		for dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, n := range indegree {
		if n == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var unlocked []string
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				unlocked = append(unlocked, dependent)
			}
		}
		if len(unlocked) > 0 {
			ready = append(ready, unlocked...)
			sort.Strings(ready)
		}
	}

	if len(order) != len(g.nodes) {
		remaining := make(map[string]bool)
		for id, n := range indegree {
			if n > 0 {
				remaining[id] = true
			}
		}
		cycle := g.cycleMembers(remaining)
		sort.Strings(cycle)
		return nil, fmt.Errorf("dependency cycle involving %s", strings.Join(cycle, ", "))
	}
	return order, nil
}

// cycleMembers strips nodes that are merely blocked downstream of a cycle,
// leaving the nodes actually on one. A node with no dependents inside the
// remaining set cannot be part of any cycle, so peeling such nodes until
// none are left isolates the cycle itself.
func (g *Graph) cycleMembers(remaining map[string]bool) []string {
	for {
		peeled := false
		for id := range remaining {
			hasDependent := false
			for other := range remaining {
				if other != id && g.deps[other][id] {
					hasDependent = true
					break
				}
			}
			if !hasDependent {
				delete(remaining, id)
				peeled = true
			}
		}
		if !peeled {
			break
		}
	}

	members := make([]string, 0, len(remaining))
	for id := range remaining {
		members = append(members, id)
	}
	return members
}
