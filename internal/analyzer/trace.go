package analyzer

import (
	"fmt"
	"net/netip"

	"github.com/eleven-am/netform/internal/domain"
)

var privateBlocks = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
}

func isExternal(addr netip.Addr) bool {
	for _, p := range privateBlocks {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// lookup picks the longest-prefix route for dst. The VPC's implicit local
// route takes part like any other.
func (n *Network) lookup(rt *RouteTable, dst netip.Addr) (domain.Route, bool) {
	var matched domain.Route
	longest := -1
	if n.VPC.Contains(dst) {
		matched = domain.Route{
			DestinationCIDR: n.VPC.String(),
			PrefixLength:    n.VPC.Bits(),
			TargetType:      targetLocal,
			TargetID:        targetLocal,
		}
		longest = n.VPC.Bits()
	}
	for _, r := range rt.Routes {
		p, err := netip.ParsePrefix(r.DestinationCIDR)
		if err != nil || !p.Contains(dst) {
			continue
		}
		if r.PrefixLength > longest {
			matched = r
			longest = r.PrefixLength
		}
	}
	return matched, longest >= 0
}

// Trace follows a packet from subnet s towards dst.
func (n *Network) Trace(s *Subnet, dst netip.Addr) *domain.PathTrace {
	trace := domain.NewPathTrace(dst.String())
	trace.AddHop(&domain.Hop{
		LogicalName: s.LogicalName,
		ProviderID:  s.ProviderID,
		Kind:        domain.KindSubnet,
		Action:      domain.HopActionEntered,
	})
	if s.RouteTable == nil {
		return trace.MarkBlocked("no route table association")
	}

	rt := s.RouteTable
	trace.AddHop(&domain.Hop{
		LogicalName: rt.LogicalName,
		ProviderID:  rt.ProviderID,
		Kind:        domain.KindRouteTable,
		Action:      domain.HopActionRouted,
	})
	route, ok := n.lookup(rt, dst)
	if !ok {
		return trace.MarkBlocked(fmt.Sprintf("no route to %s", dst))
	}
	trace.LastHop().Details = route.DestinationCIDR

	switch route.TargetType {
	case targetLocal:
		trace.AddHop(&domain.Hop{Action: domain.HopActionTerminal, Details: targetLocal})
		return trace.MarkSuccess()
	case targetInternetGateway:
		trace.AddHop(&domain.Hop{
			LogicalName: n.names[route.TargetID],
			ProviderID:  route.TargetID,
			Kind:        domain.KindInternetGateway,
			Action:      domain.HopActionRouted,
		})
		if !isExternal(dst) {
			return trace.MarkBlocked(fmt.Sprintf("%s is not an internet address", dst))
		}
		trace.AddHop(&domain.Hop{Action: domain.HopActionTerminal, Details: "internet"})
		return trace.MarkSuccess()
	}
	return trace.MarkBlocked(fmt.Sprintf("unsupported route target %s", route.TargetID))
}
