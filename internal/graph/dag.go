package graph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Vertex is a node in a DirectedAcyclicGraph. Order breaks ties between
// vertices that become ready at the same time during a sort.
type Vertex[T cmp.Ordered] struct {
	ID        T
	Order     int
	DependsOn map[T]struct{}
}

// DirectedAcyclicGraph rejects duplicate vertices, self references,
// unknown dependencies and cycles as edges are added.
type DirectedAcyclicGraph[T cmp.Ordered] struct {
	Vertices map[T]*Vertex[T]
}

func NewDirectedAcyclicGraph[T cmp.Ordered]() *DirectedAcyclicGraph[T] {
	return &DirectedAcyclicGraph[T]{Vertices: make(map[T]*Vertex[T])}
}

func (d *DirectedAcyclicGraph[T]) AddVertex(id T, order int) error {
	if _, exists := d.Vertices[id]; exists {
		return fmt.Errorf("vertex %v already exists", id)
	}
	d.Vertices[id] = &Vertex[T]{ID: id, Order: order, DependsOn: make(map[T]struct{})}
	return nil
}

// AddDependencies records that id depends on every vertex in deps.
func (d *DirectedAcyclicGraph[T]) AddDependencies(id T, deps []T) error {
	v, ok := d.Vertices[id]
	if !ok {
		return fmt.Errorf("vertex %v does not exist", id)
	}
	for _, dep := range deps {
		if dep == id {
			return fmt.Errorf("vertex %v cannot depend on itself", id)
		}
		if _, ok := d.Vertices[dep]; !ok {
			return fmt.Errorf("dependency %v of %v does not exist", dep, id)
		}
		v.DependsOn[dep] = struct{}{}
	}
	if cyclic, cycle := d.hasCycle(); cyclic {
		for _, dep := range deps {
			delete(v.DependsOn, dep)
		}
		return &CycleError[T]{Cycle: cycle}
	}
	return nil
}

// CycleError lists the vertices of a detected cycle, first vertex repeated last.
type CycleError[T cmp.Ordered] struct {
	Cycle []T
}

func (e *CycleError[T]) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = fmt.Sprint(id)
	}
	return "graph contains a cycle: " + strings.Join(parts, " -> ")
}

func AsCycleError[T cmp.Ordered](err error) *CycleError[T] {
	var cerr *CycleError[T]
	if errors.As(err, &cerr) {
		return cerr
	}
	return nil
}

func (d *DirectedAcyclicGraph[T]) sortedIDs() []T {
	ids := make([]T, 0, len(d.Vertices))
	for id := range d.Vertices {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b T) int {
		if c := cmp.Compare(d.Vertices[a].Order, d.Vertices[b].Order); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return ids
}

func (d *DirectedAcyclicGraph[T]) hasCycle() (bool, []T) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[T]int, len(d.Vertices))
	var stack []T
	var cycle []T

	var visit func(id T) bool
	visit = func(id T) bool {
		state[id] = visiting
		stack = append(stack, id)
		deps := make([]T, 0, len(d.Vertices[id].DependsOn))
		for dep := range d.Vertices[id].DependsOn {
			deps = append(deps, dep)
		}
		slices.Sort(deps)
		for _, dep := range deps {
			switch state[dep] {
			case visiting:
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range d.sortedIDs() {
		if state[id] == unvisited && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}

// TopologicalSort returns vertices with every dependency before its
// dependents. Among ready vertices the lowest Order goes first.
func (d *DirectedAcyclicGraph[T]) TopologicalSort() ([]T, error) {
	levels, err := d.TopologicalSortLevels()
	if err != nil {
		return nil, err
	}
	var order []T
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// TopologicalSortLevels groups vertices into waves; every vertex in a wave
// depends only on vertices of earlier waves.
func (d *DirectedAcyclicGraph[T]) TopologicalSortLevels() ([][]T, error) {
	if cyclic, cycle := d.hasCycle(); cyclic {
		return nil, &CycleError[T]{Cycle: cycle}
	}

	indegree := make(map[T]int, len(d.Vertices))
	dependents := make(map[T][]T)
	for id, v := range d.Vertices {
		indegree[id] = len(v.DependsOn)
		for dep := range v.DependsOn {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var ready []T
	for _, id := range d.sortedIDs() {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	var levels [][]T
	for len(ready) > 0 {
		levels = append(levels, ready)
		var next []T
		for _, id := range ready {
			for _, dependent := range dependents[id] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		slices.SortFunc(next, func(a, b T) int {
			if c := cmp.Compare(d.Vertices[a].Order, d.Vertices[b].Order); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		ready = next
	}
	return levels, nil
}

// Dependents returns the vertices that directly depend on id, sorted.
func (d *DirectedAcyclicGraph[T]) Dependents(id T) []T {
	var out []T
	for other, v := range d.Vertices {
		if _, ok := v.DependsOn[id]; ok {
			out = append(out, other)
		}
	}
	slices.Sort(out)
	return out
}
