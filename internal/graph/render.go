package graph

import (
	"fmt"
	"io"

	"github.com/emicklei/dot"

	"github.com/eleven-am/netform/internal/domain"
)

type Format string

const (
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
)

var outcomeColors = map[domain.Outcome]string{
	domain.OutcomeCreated:             "palegreen",
	domain.OutcomeAdopted:             "palegreen",
	domain.OutcomeUpdated:             "lightblue",
	domain.OutcomeUnchanged:           "white",
	domain.OutcomeFailed:              "salmon",
	domain.OutcomeSkipped:             "lightgrey",
	domain.OutcomeRequiresReplacement: "orange",
	domain.OutcomeWouldCreate:         "honeydew",
	domain.OutcomeWouldUpdate:         "aliceblue",
}

// Renderer writes a graph as Graphviz or Mermaid. Outcomes, when set,
// colour each node by its last reconcile outcome.
type Renderer struct {
	Format   Format
	Outcomes map[string]domain.Outcome
}

func (r Renderer) Render(g *Graph, w io.Writer) error {
	dg := r.build(g)
	var output string
	if r.Format == FormatMermaid {
		output = dot.MermaidGraph(dg, dot.MermaidTopToBottom)
	} else {
		output = dg.String()
	}
	_, err := io.WriteString(w, output)
	return err
}

func (r Renderer) build(g *Graph) *dot.Graph {
	dg := dot.NewGraph(dot.Directed)
	dg.Attr("rankdir", "TB")
	dg.Attr("label", g.Topology)
	dg.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})

	clusters := map[domain.Visibility]*dot.Graph{
		domain.VisibilityPublic:  dg.Subgraph("cluster_public", dot.ClusterOption{}),
		domain.VisibilityPrivate: dg.Subgraph("cluster_private", dot.ClusterOption{}),
	}
	for v, c := range clusters {
		c.Attr("label", string(v))
		c.Attr("style", "rounded")
	}

	nodes := make(map[string]dot.Node, g.Len())
	for _, n := range g.Nodes() {
		parent := dg
		if c, ok := clusters[n.Visibility]; ok {
			parent = c
		}
		dn := parent.Node(n.LogicalName)
		label := fmt.Sprintf("%s\\n[%s]", n.LogicalName, n.Kind)
		if cidr := n.Attributes[domain.AttrCIDRBlock]; cidr != "" {
			label += "\\n" + cidr
		}
		dn.Label(label)
		if outcome, ok := r.Outcomes[n.LogicalName]; ok {
			dn.Attr("style", "filled")
			dn.Attr("fillcolor", outcomeColors[outcome])
		}
		nodes[n.LogicalName] = dn
	}

	for _, n := range g.Nodes() {
		for _, dep := range n.DependsOn {
			dg.Edge(nodes[n.LogicalName], nodes[dep])
		}
	}
	return dg
}
