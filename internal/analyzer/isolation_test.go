package analyzer

import (
	"context"
	"net/netip"
	"testing"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/fake"
	"github.com/eleven-am/netform/internal/graph"
)

func testSpec() domain.TopologySpec {
	return domain.TopologySpec{
		VPCCIDR:            "10.0.0.0/16",
		AvailabilityZones:  []string{"us-east-1a", "us-east-1b"},
		PublicSubnetCIDRs:  []string{"10.0.1.0/24", "10.0.2.0/24"},
		PrivateSubnetCIDRs: []string{"10.0.11.0/24", "10.0.12.0/24"},
	}
}

func TestCheckIsolation_BuiltGraphHasNoViolations(t *testing.T) {
	findings, err := CheckIsolation(graph.Build(testSpec()))
	if err != nil {
		t.Fatalf("CheckIsolation() error = %v", err)
	}
	if len(findings) != 8 {
		t.Fatalf("expected 8 findings, got %d", len(findings))
	}
	if v := Violations(findings); len(v) != 0 {
		t.Fatalf("expected no violations, got %v", v)
	}

	for _, f := range findings {
		switch {
		case f.Probe == "8.8.8.8" && f.Visibility == domain.VisibilityPublic:
			if f.Actual != ExpectInternet {
				t.Errorf("%s: expected internet, got %s", f.Subnet, f.Actual)
			}
		case f.Probe == "8.8.8.8":
			if f.Actual != ExpectBlocked {
				t.Errorf("%s: expected blocked, got %s", f.Subnet, f.Actual)
			}
		default:
			if f.Actual != ExpectLocal {
				t.Errorf("%s -> %s: expected local, got %s", f.Subnet, f.Probe, f.Actual)
			}
		}
	}
}

func TestTrace_PublicSubnetHops(t *testing.T) {
	n, err := FromGraph(graph.Build(testSpec()))
	if err != nil {
		t.Fatalf("FromGraph() error = %v", err)
	}
	s, ok := n.Subnet("public-subnet-1")
	if !ok {
		t.Fatal("public-subnet-1 not found")
	}

	trace := n.Trace(s, DefaultExternalProbe)
	if !trace.Success {
		t.Fatalf("expected success, got %s", trace.BlockingReason())
	}
	want := "public-subnet-1 -> public-route-table -> internet-gateway -> internet"
	if got := trace.String(); got != want {
		t.Errorf("trace = %q, want %q", got, want)
	}
	if trace.Hops[1].Details != "0.0.0.0/0" {
		t.Errorf("expected default route match, got %q", trace.Hops[1].Details)
	}
}

func TestTrace_PrivateSubnetBlockedAtRouteTable(t *testing.T) {
	n, err := FromGraph(graph.Build(testSpec()))
	if err != nil {
		t.Fatalf("FromGraph() error = %v", err)
	}
	s, _ := n.Subnet("private-subnet-0")

	trace := n.Trace(s, DefaultExternalProbe)
	if trace.Success {
		t.Fatal("expected private subnet to be blocked")
	}
	if trace.BlockedAt == nil || trace.BlockedAt.LogicalName != "private-route-table" {
		t.Fatalf("expected block at private-route-table, got %+v", trace.BlockedAt)
	}
	if trace.BlockedAt.Action != domain.HopActionBlocked {
		t.Errorf("expected blocked action, got %s", trace.BlockedAt.Action)
	}
}

func TestTrace_LongestPrefixWins(t *testing.T) {
	n := &Network{
		VPC:   netip.MustParsePrefix("10.0.0.0/16"),
		names: map[string]string{"igw-1": "internet-gateway"},
	}
	rt := &RouteTable{
		LogicalName: "rt",
		Routes: []domain.Route{
			{DestinationCIDR: "0.0.0.0/0", PrefixLength: 0, TargetType: targetInternetGateway, TargetID: "igw-1"},
			{DestinationCIDR: "10.0.0.0/8", PrefixLength: 8, TargetType: "unknown", TargetID: "pcx-1"},
		},
	}

	tests := []struct {
		dst  string
		want string
	}{
		{"10.0.5.5", targetLocal},
		{"10.1.0.1", "pcx-1"},
		{"1.1.1.1", "igw-1"},
	}
	for _, tt := range tests {
		route, ok := n.lookup(rt, netip.MustParseAddr(tt.dst))
		if !ok {
			t.Fatalf("%s: no route", tt.dst)
		}
		if route.TargetID != tt.want {
			t.Errorf("%s: target = %s, want %s", tt.dst, route.TargetID, tt.want)
		}
	}
}

func TestCheck_FlagsPrivateSubnetWithInternetRoute(t *testing.T) {
	g := graph.Build(testSpec())
	n, err := FromGraph(g)
	if err != nil {
		t.Fatalf("FromGraph() error = %v", err)
	}
	s, _ := n.Subnet("private-subnet-1")
	pub, _ := n.Subnet("public-subnet-0")
	s.RouteTable = pub.RouteTable

	findings, err := n.Check(DefaultExternalProbe)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	v := Violations(findings)
	if len(v) != 1 {
		t.Fatalf("expected 1 violation, got %d: %v", len(v), v)
	}
	if v[0].Subnet != "private-subnet-1" || v[0].Actual != ExpectInternet {
		t.Errorf("unexpected violation %s", v[0])
	}
}

func TestCheck_UnassociatedSubnetIsBlocked(t *testing.T) {
	n, err := FromGraph(graph.Build(testSpec()))
	if err != nil {
		t.Fatalf("FromGraph() error = %v", err)
	}
	s, _ := n.Subnet("public-subnet-0")
	s.RouteTable = nil

	findings, err := n.Check(DefaultExternalProbe)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if v := Violations(findings); len(v) != 2 {
		t.Fatalf("expected external and local probes to fail, got %v", v)
	}
}

func TestCheck_RejectsPrivateProbe(t *testing.T) {
	n, err := FromGraph(graph.Build(testSpec()))
	if err != nil {
		t.Fatalf("FromGraph() error = %v", err)
	}
	if _, err := n.Check(netip.MustParseAddr("192.168.1.1")); err == nil {
		t.Fatal("expected error for private probe")
	}
}

func TestFromLive_UsesDescribedRoutes(t *testing.T) {
	p := fake.NewProvider()
	ctx := context.Background()

	vpc := p.Inject(domain.KindVPC, "vpc", domain.Attributes{domain.AttrCIDRBlock: "10.0.0.0/16"})
	igw := p.Inject(domain.KindInternetGateway, "internet-gateway", domain.Attributes{domain.AttrVPC: vpc})
	sub := p.Inject(domain.KindSubnet, "private-subnet-0", domain.Attributes{
		domain.AttrCIDRBlock:            "10.0.11.0/24",
		domain.TagPrefix + "Visibility": "private",
	})
	rt := p.Inject(domain.KindRouteTable, "private-route-table", domain.Attributes{domain.AttrVPC: vpc})
	assoc := p.Inject(domain.KindRouteTableAssociation, "private-subnet-0-association", domain.Attributes{
		domain.AttrSubnet:     sub,
		domain.AttrRouteTable: rt,
	})

	records := []domain.ResourceRecord{}
	for _, r := range []struct {
		name, id string
		kind     domain.ResourceKind
	}{
		{"vpc", vpc, domain.KindVPC},
		{"internet-gateway", igw, domain.KindInternetGateway},
		{"private-subnet-0", sub, domain.KindSubnet},
		{"private-route-table", rt, domain.KindRouteTable},
		{"private-subnet-0-association", assoc, domain.KindRouteTableAssociation},
	} {
		attrs, err := p.Describe(ctx, r.kind, r.id)
		if err != nil {
			t.Fatalf("describe %s: %v", r.name, err)
		}
		records = append(records, domain.ResourceRecord{LogicalName: r.name, Kind: r.kind, ProviderID: r.id, Attributes: attrs})
	}

	n, err := FromRecords(records)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	findings, _ := n.Check(DefaultExternalProbe)
	if v := Violations(findings); len(v) != 0 {
		t.Fatalf("expected recorded state to be isolated, got %v", v)
	}

	// Someone adds a default route to the private table out of band.
	p.Mutate(rt, func(a domain.Attributes) { a[domain.RoutePrefix+"0.0.0.0/0"] = igw })

	n, err = FromLive(ctx, records, p)
	if err != nil {
		t.Fatalf("FromLive() error = %v", err)
	}
	findings, _ = n.Check(DefaultExternalProbe)
	v := Violations(findings)
	if len(v) != 1 || v[0].Subnet != "private-subnet-0" {
		t.Fatalf("expected private-subnet-0 violation, got %v", v)
	}
	if v[0].Trace.Hops[2].LogicalName != "internet-gateway" {
		t.Errorf("expected igw hop named by record, got %+v", v[0].Trace.Hops[2])
	}
}
