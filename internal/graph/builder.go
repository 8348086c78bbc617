// Package graph expands a validated topology into an explicit dependency
// graph of resource nodes.
package graph

import (
	"fmt"
	"slices"

	"github.com/eleven-am/netform/internal/domain"
)

const (
	VPCName               = "vpc"
	InternetGatewayName   = "internet-gateway"
	PublicRouteTableName  = "public-route-table"
	PrivateRouteTableName = "private-route-table"
)

func SubnetName(v domain.Visibility, index int) string {
	return fmt.Sprintf("%s-subnet-%d", v, index)
}

func AssociationName(v domain.Visibility, index int) string {
	return SubnetName(v, index) + "-association"
}

func RouteTableName(v domain.Visibility) string {
	if v == domain.VisibilityPublic {
		return PublicRouteTableName
	}
	return PrivateRouteTableName
}

// Graph is an immutable set of resource nodes and their dependency edges.
type Graph struct {
	Topology string
	nodes    map[string]domain.ResourceNode
	dag      *DirectedAcyclicGraph[string]
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) Node(logicalName string) (domain.ResourceNode, bool) {
	n, ok := g.nodes[logicalName]
	if !ok {
		return domain.ResourceNode{}, false
	}
	n.Attributes = n.Attributes.Clone()
	n.DependsOn = slices.Clone(n.DependsOn)
	return n, true
}

// Nodes returns every node in topological order.
func (g *Graph) Nodes() []domain.ResourceNode {
	order := g.TopologicalOrder()
	out := make([]domain.ResourceNode, 0, len(order))
	for _, name := range order {
		n, _ := g.Node(name)
		out = append(out, n)
	}
	return out
}

// TopologicalOrder is deterministic for a given spec.
func (g *Graph) TopologicalOrder() []string {
	order, err := g.dag.TopologicalSort()
	if err != nil {
		panic(fmt.Sprintf("graph: built graph is cyclic: %v", err))
	}
	return order
}

// ReverseOrder puts every dependent before its dependencies.
func (g *Graph) ReverseOrder() []string {
	order := g.TopologicalOrder()
	slices.Reverse(order)
	return order
}

// Dependents lists nodes that directly depend on logicalName.
func (g *Graph) Dependents(logicalName string) []string {
	return g.dag.Dependents(logicalName)
}

// Builder assembles a Graph node by node.
type Builder struct {
	topology string
	tags     map[string]string
	nodes    map[string]domain.ResourceNode
	dag      *DirectedAcyclicGraph[string]
}

func NewBuilder(topology string, tags map[string]string) *Builder {
	return &Builder{
		topology: topology,
		tags:     tags,
		nodes:    make(map[string]domain.ResourceNode),
		dag:      NewDirectedAcyclicGraph[string](),
	}
}

// Add inserts a node. Dependencies must already be present.
func (b *Builder) Add(node domain.ResourceNode) error {
	if node.Attributes == nil {
		node.Attributes = domain.Attributes{}
	}
	// Associations cannot carry tags.
	if node.Kind != domain.KindRouteTableAssociation {
		node.Attributes[domain.AttrName] = b.topology + "-" + node.LogicalName
		for k, v := range b.tags {
			node.Attributes[domain.TagPrefix+k] = v
		}
		if node.Visibility != domain.VisibilityNone {
			node.Attributes[domain.TagPrefix+"Visibility"] = string(node.Visibility)
		}
	}
	slices.Sort(node.DependsOn)

	if err := b.dag.AddVertex(node.LogicalName, len(b.nodes)); err != nil {
		return err
	}
	if err := b.dag.AddDependencies(node.LogicalName, node.DependsOn); err != nil {
		delete(b.dag.Vertices, node.LogicalName)
		return fmt.Errorf("add %s: %w", node.LogicalName, err)
	}
	b.nodes[node.LogicalName] = node
	return nil
}

func (b *Builder) Graph() *Graph {
	return &Graph{Topology: b.topology, nodes: b.nodes, dag: b.dag}
}

// Build expands an already-validated spec into 1 + 1 + N + N + 2 + 2N nodes.
func Build(spec domain.TopologySpec) *Graph {
	b := NewBuilder(spec.TopologyName(), spec.Tags)
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("graph: %v", err))
		}
	}

	must(b.Add(domain.ResourceNode{
		LogicalName: VPCName,
		Kind:        domain.KindVPC,
		Attributes:  domain.Attributes{domain.AttrCIDRBlock: spec.VPCCIDR},
	}))
	must(b.Add(domain.ResourceNode{
		LogicalName: InternetGatewayName,
		Kind:        domain.KindInternetGateway,
		Attributes:  domain.Attributes{domain.AttrVPC: domain.Ref(VPCName)},
		DependsOn:   []string{VPCName},
	}))

	subnets := []struct {
		visibility domain.Visibility
		cidrs      []string
	}{
		{domain.VisibilityPublic, spec.PublicSubnetCIDRs},
		{domain.VisibilityPrivate, spec.PrivateSubnetCIDRs},
	}
	for _, group := range subnets {
		for i, cidr := range group.cidrs {
			must(b.Add(domain.ResourceNode{
				LogicalName: SubnetName(group.visibility, i),
				Kind:        domain.KindSubnet,
				Visibility:  group.visibility,
				Attributes: domain.Attributes{
					domain.AttrCIDRBlock:        cidr,
					domain.AttrAvailabilityZone: spec.AvailabilityZones[i],
					domain.AttrVPC:              domain.Ref(VPCName),
				},
				DependsOn: []string{VPCName},
			}))
		}
	}

	defaultRoute := domain.RoutePrefix + domain.DefaultRouteCIDR
	must(b.Add(domain.ResourceNode{
		LogicalName: PublicRouteTableName,
		Kind:        domain.KindRouteTable,
		Visibility:  domain.VisibilityPublic,
		Attributes: domain.Attributes{
			domain.AttrVPC: domain.Ref(VPCName),
			defaultRoute:   domain.Ref(InternetGatewayName),
		},
		DependsOn: []string{VPCName, InternetGatewayName},
	}))
	// No default route: private subnets have no path to the internet.
	must(b.Add(domain.ResourceNode{
		LogicalName: PrivateRouteTableName,
		Kind:        domain.KindRouteTable,
		Visibility:  domain.VisibilityPrivate,
		Attributes:  domain.Attributes{domain.AttrVPC: domain.Ref(VPCName)},
		DependsOn:   []string{VPCName},
	}))

	for _, group := range subnets {
		rt := RouteTableName(group.visibility)
		for i := range group.cidrs {
			subnet := SubnetName(group.visibility, i)
			must(b.Add(domain.ResourceNode{
				LogicalName: AssociationName(group.visibility, i),
				Kind:        domain.KindRouteTableAssociation,
				Visibility:  group.visibility,
				Attributes: domain.Attributes{
					domain.AttrSubnet:     domain.Ref(subnet),
					domain.AttrRouteTable: domain.Ref(rt),
				},
				DependsOn: []string{subnet, rt},
			}))
		}
	}

	return b.Graph()
}
