package graph

import (
	"fmt"
	"strings"
	"testing"
)

func TestDAGAddVertex(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()

	if err := d.AddVertex("A", 1); err != nil {
		t.Errorf("Failed to add vertex: %v", err)
	}
	if err := d.AddVertex("A", 1); err == nil {
		t.Error("Expected error when adding duplicate vertex, but got nil")
	}
	if len(d.Vertices) != 1 {
		t.Errorf("Expected 1 vertex, but got %d", len(d.Vertices))
	}
}

func TestDAGAddDependencies(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	for i, id := range []string{"A", "B", "C"} {
		if err := d.AddVertex(id, i); err != nil {
			t.Fatalf("AddVertex(%s): %v", id, err)
		}
	}

	if err := d.AddDependencies("A", []string{"B"}); err != nil {
		t.Errorf("Failed to add edge: %v", err)
	}
	if err := d.AddDependencies("A", []string{"Z"}); err == nil {
		t.Error("Expected error for unknown dependency")
	}
	if err := d.AddDependencies("Z", []string{"A"}); err == nil {
		t.Error("Expected error for unknown vertex")
	}
	if err := d.AddDependencies("A", []string{"A"}); err == nil {
		t.Error("Expected error for self reference")
	}
	if err := d.AddDependencies("B", []string{"C"}); err != nil {
		t.Fatalf("adding B->C: %v", err)
	}

	err := d.AddDependencies("C", []string{"A"})
	if err == nil {
		t.Fatal("Expected error when creating a cycle")
	}
	cerr := AsCycleError[string](err)
	if cerr == nil {
		t.Fatalf("expected CycleError, got %T", err)
	}
	if len(cerr.Cycle) < 2 || cerr.Cycle[0] != cerr.Cycle[len(cerr.Cycle)-1] {
		t.Errorf("cycle should start and end on the same vertex, got %v", cerr.Cycle)
	}
	if _, ok := d.Vertices["C"].DependsOn["A"]; ok {
		t.Error("rejected edge must not remain in the graph")
	}
}

func TestDAGTopologicalSort(t *testing.T) {
	grid := []struct {
		Nodes string
		Edges string
		Want  string
	}{
		{Nodes: "A,B", Want: "A,B"},
		{Nodes: "A,B", Edges: "A->B", Want: "A,B"},
		{Nodes: "A,B", Edges: "B->A", Want: "B,A"},
		{Nodes: "A,B,C,D,E,F", Edges: "D->C", Want: "A,B,D,E,F,C"},
		{Nodes: "A,B,C,D,E,F", Edges: "F->A,F->B,B->A", Want: "C,D,E,F,B,A"},
		{Nodes: "A,B,C,D,E,F", Edges: "B->A,C->A,D->B,D->C,F->E,A->E", Want: "D,F,B,C,A,E"},
	}

	for i, g := range grid {
		t.Run(fmt.Sprintf("[%d] nodes=%s,edges=%s", i, g.Nodes, g.Edges), func(t *testing.T) {
			d := NewDirectedAcyclicGraph[string]()
			for i, node := range strings.Split(g.Nodes, ",") {
				if err := d.AddVertex(node, i); err != nil {
					t.Fatalf("adding vertex: %v", err)
				}
			}
			if g.Edges != "" {
				for _, edge := range strings.Split(g.Edges, ",") {
					tokens := strings.SplitN(edge, "->", 2)
					if err := d.AddDependencies(tokens[1], []string{tokens[0]}); err != nil {
						t.Fatalf("adding edge %q: %v", edge, err)
					}
				}
			}

			order, err := d.TopologicalSort()
			if err != nil {
				t.Fatalf("topological sort failed: %v", err)
			}
			if got := strings.Join(order, ","); got != g.Want {
				t.Errorf("TopologicalSort() = %q, want %q", got, g.Want)
			}
		})
	}
}

func TestDAGTopologicalSortLevels(t *testing.T) {
	d := NewDirectedAcyclicGraph[string]()
	for i, id := range []string{"vpc", "igw", "subnet", "rt", "assoc"} {
		if err := d.AddVertex(id, i); err != nil {
			t.Fatal(err)
		}
	}
	edges := map[string][]string{
		"igw":    {"vpc"},
		"subnet": {"vpc"},
		"rt":     {"vpc", "igw"},
		"assoc":  {"subnet", "rt"},
	}
	for id, deps := range edges {
		if err := d.AddDependencies(id, deps); err != nil {
			t.Fatal(err)
		}
	}

	levels, err := d.TopologicalSortLevels()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"vpc"}, {"igw", "subnet"}, {"rt"}, {"assoc"}}
	if fmt.Sprint(levels) != fmt.Sprint(want) {
		t.Errorf("levels = %v, want %v", levels, want)
	}
	if got := d.Dependents("vpc"); fmt.Sprint(got) != "[igw rt subnet]" {
		t.Errorf("Dependents(vpc) = %v", got)
	}
}
