package engine

import (
	"slices"
	"strings"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/ast"
)

// DependencyNode represents a node with dependencies for topological sorting.
type DependencyNode interface {
	ID() string
	Dependencies() []string
}

// TopoSort performs a topological sort using Kahn's algorithm.
// Dependencies come before dependents; among nodes that are ready at the same
// time the smallest ID goes first. Dependencies outside the node set and
// self-dependencies are ignored. A cycle returns ErrCyclicSchema naming the
// nodes that could not be ordered.
func TopoSort[T DependencyNode](nodes []T) ([]T, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	// in-degree counts dependencies inside the set; dependents is the reverse edge list
	byID := make(map[string]T, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		byID[n.ID()] = n
		inDegree[n.ID()] = 0
	}

	for _, n := range nodes {
		id := n.ID()
		seen := make(map[string]bool)
		for _, dep := range n.Dependencies() {
			if dep == id || seen[dep] {
				continue
			}
			if _, ok := byID[dep]; !ok {
				continue
			}
			seen[dep] = true
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []string
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	slices.Sort(ready)

	result := make([]T, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		result = append(result, byID[id])

		for _, other := range dependents[id] {
			inDegree[other]--
			if inDegree[other] == 0 {
				ready = append(ready, other)
				slices.Sort(ready)
			}
		}
	}

	if len(result) != len(byID) {
		var stuck []string
		for id, degree := range inDegree {
			if degree > 0 {
				stuck = append(stuck, id)
			}
		}
		slices.Sort(stuck)
		return nil, alerr.Newf(alerr.ErrCyclicSchema, "foreign key cycle between tables: %s", strings.Join(stuck, ", ")).
			With("tables", stuck).
			WithHelp("break the cycle by making one reference nullable and adding it in a later migration")
	}

	return result, nil
}

// tableNode adapts a table for TopoSort.
type tableNode struct {
	*ast.TableDef
}

func (n tableNode) ID() string { return n.Name }

// DependencyOrder returns the named tables of s ordered so that referenced
// tables come first. With no names, every table is ordered. References must
// be resolved.
func DependencyOrder(s *ast.Schema, names ...string) ([]string, error) {
	tables := s.Tables()
	if len(names) > 0 {
		tables = make([]*ast.TableDef, 0, len(names))
		for _, name := range names {
			if t := s.Table(name); t != nil {
				tables = append(tables, t)
			}
		}
	}

	nodes := make([]tableNode, len(tables))
	for i, t := range tables {
		nodes[i] = tableNode{t}
	}

	sorted, err := TopoSort(nodes)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(sorted))
	for i, n := range sorted {
		out[i] = n.Name
	}
	return out, nil
}
