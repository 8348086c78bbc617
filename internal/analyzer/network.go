// Package analyzer traces packets through the route tables of a topology and
// checks that public and private subnets are isolated as declared.
package analyzer

import (
	"context"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

const (
	targetLocal           = "local"
	targetInternetGateway = "internet-gateway"
)

type RouteTable struct {
	LogicalName string
	ProviderID  string
	Routes      []domain.Route
}

type Subnet struct {
	LogicalName string
	ProviderID  string
	Visibility  domain.Visibility
	CIDR        netip.Prefix
	RouteTable  *RouteTable
}

// Network is the routing view of one VPC.
type Network struct {
	VPC     netip.Prefix
	Subnets []*Subnet
	// names maps route target keys to logical names for hop rendering.
	names map[string]string
}

// entry is a node or record reduced to what routing needs. key is what
// other entries use to reference it.
type entry struct {
	key         string
	logicalName string
	providerID  string
	kind        domain.ResourceKind
	attrs       domain.Attributes
}

// FromGraph builds the network a graph describes, before anything exists.
func FromGraph(g *graph.Graph) (*Network, error) {
	entries := make([]entry, 0, g.Len())
	for _, node := range g.Nodes() {
		entries = append(entries, entry{
			key:         node.LogicalName,
			logicalName: node.LogicalName,
			kind:        node.Kind,
			attrs:       node.Attributes,
		})
	}
	return build(entries, func(v string) string {
		name, _ := domain.RefTarget(v)
		return name
	})
}

// FromRecords builds the network recorded in state, keyed by provider id.
func FromRecords(records []domain.ResourceRecord) (*Network, error) {
	entries := make([]entry, 0, len(records))
	for _, rec := range records {
		if rec.ProviderID == "" {
			continue
		}
		entries = append(entries, entry{
			key:         rec.ProviderID,
			logicalName: rec.LogicalName,
			providerID:  rec.ProviderID,
			kind:        rec.Kind,
			attrs:       rec.Attributes,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].logicalName < entries[j].logicalName })
	return build(entries, func(v string) string { return v })
}

// FromLive builds the network from recorded ids, replacing recorded route
// tables and associations with what the provider describes now.
func FromLive(ctx context.Context, records []domain.ResourceRecord, provider domain.Provider) (*Network, error) {
	live := make([]domain.ResourceRecord, 0, len(records))
	for _, rec := range records {
		if rec.ProviderID != "" && (rec.Kind == domain.KindRouteTable || rec.Kind == domain.KindRouteTableAssociation) {
			attrs, err := provider.Describe(ctx, rec.Kind, rec.ProviderID)
			if err != nil {
				return nil, fmt.Errorf("describe %s %s: %w", rec.LogicalName, rec.ProviderID, err)
			}
			rec.Attributes = attrs
		}
		live = append(live, rec)
	}
	return FromRecords(live)
}

func build(entries []entry, target func(string) string) (*Network, error) {
	n := &Network{names: make(map[string]string)}
	kinds := make(map[string]domain.ResourceKind)
	for _, e := range entries {
		n.names[e.key] = e.logicalName
		kinds[e.key] = e.kind
	}

	subnets := make(map[string]*Subnet)
	tables := make(map[string]*RouteTable)
	for _, e := range entries {
		switch e.kind {
		case domain.KindVPC:
			p, err := netip.ParsePrefix(e.attrs[domain.AttrCIDRBlock])
			if err != nil {
				return nil, fmt.Errorf("vpc %s: %w", e.logicalName, err)
			}
			n.VPC = p.Masked()
		case domain.KindSubnet:
			p, err := netip.ParsePrefix(e.attrs[domain.AttrCIDRBlock])
			if err != nil {
				return nil, fmt.Errorf("subnet %s: %w", e.logicalName, err)
			}
			s := &Subnet{
				LogicalName: e.logicalName,
				ProviderID:  e.providerID,
				Visibility:  domain.Visibility(e.attrs[domain.TagPrefix+"Visibility"]),
				CIDR:        p.Masked(),
			}
			subnets[e.key] = s
			n.Subnets = append(n.Subnets, s)
		case domain.KindRouteTable:
			rt := &RouteTable{LogicalName: e.logicalName, ProviderID: e.providerID}
			for dest, v := range e.attrs.Routes() {
				p, err := netip.ParsePrefix(dest)
				if err != nil {
					return nil, fmt.Errorf("route table %s: route %s: %w", e.logicalName, dest, err)
				}
				id := target(v)
				rt.Routes = append(rt.Routes, domain.Route{
					DestinationCIDR: p.Masked().String(),
					PrefixLength:    p.Bits(),
					TargetType:      targetType(kinds[id], id),
					TargetID:        id,
				})
			}
			sort.Slice(rt.Routes, func(i, j int) bool { return rt.Routes[i].DestinationCIDR < rt.Routes[j].DestinationCIDR })
			tables[e.key] = rt
		}
	}

	for _, e := range entries {
		if e.kind != domain.KindRouteTableAssociation {
			continue
		}
		s, ok := subnets[target(e.attrs[domain.AttrSubnet])]
		if !ok {
			continue
		}
		if rt, ok := tables[target(e.attrs[domain.AttrRouteTable])]; ok {
			s.RouteTable = rt
		}
	}
	if !n.VPC.IsValid() {
		return nil, fmt.Errorf("network has no vpc")
	}
	return n, nil
}

func targetType(kind domain.ResourceKind, id string) string {
	switch {
	case kind == domain.KindInternetGateway, strings.HasPrefix(id, "igw-"):
		return targetInternetGateway
	case id == targetLocal:
		return targetLocal
	}
	return "unknown"
}

// Subnet returns the subnet with the given logical name.
func (n *Network) Subnet(logicalName string) (*Subnet, bool) {
	for _, s := range n.Subnets {
		if s.LogicalName == logicalName {
			return s, true
		}
	}
	return nil, false
}
