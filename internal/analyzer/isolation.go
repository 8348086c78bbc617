package analyzer

import (
	"fmt"
	"net/netip"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

// DefaultExternalProbe is the internet address every subnet is traced to.
var DefaultExternalProbe = netip.MustParseAddr("8.8.8.8")

const (
	ExpectInternet = "internet"
	ExpectLocal    = "local"
	ExpectBlocked  = "blocked"
)

// Finding is the result of tracing one probe from one subnet.
type Finding struct {
	Subnet     string            `json:"subnet"`
	Visibility domain.Visibility `json:"visibility"`
	Probe      string            `json:"probe"`
	Expected   string            `json:"expected"`
	Actual     string            `json:"actual"`
	Violation  bool              `json:"violation"`
	Trace      *domain.PathTrace `json:"trace"`
}

func (f Finding) String() string {
	status := "ok"
	if f.Violation {
		status = "VIOLATION"
	}
	return fmt.Sprintf("%s %s -> %s: expected %s, got %s (%s)", status, f.Subnet, f.Probe, f.Expected, f.Actual, f.Trace)
}

// CheckIsolation traces the graph's subnets before anything is applied.
func CheckIsolation(g *graph.Graph) ([]Finding, error) {
	n, err := FromGraph(g)
	if err != nil {
		return nil, err
	}
	return n.Check(DefaultExternalProbe)
}

// Check traces external and in-VPC probes from every subnet. Public subnets
// must reach the internet; private subnets must not. Every subnet must reach
// the VPC through the local route.
func (n *Network) Check(external netip.Addr) ([]Finding, error) {
	if !isExternal(external) || n.VPC.Contains(external) {
		return nil, fmt.Errorf("probe %s is not an internet address", external)
	}
	internal := n.VPC.Addr().Next()

	var findings []Finding
	for _, s := range n.Subnets {
		want := ExpectBlocked
		if s.Visibility == domain.VisibilityPublic {
			want = ExpectInternet
		}
		findings = append(findings,
			n.probe(s, external, want),
			n.probe(s, internal, ExpectLocal),
		)
	}
	return findings, nil
}

func (n *Network) probe(s *Subnet, dst netip.Addr, want string) Finding {
	trace := n.Trace(s, dst)
	got := trace.Terminal()
	if got == "" {
		got = ExpectBlocked
	}
	return Finding{
		Subnet:     s.LogicalName,
		Visibility: s.Visibility,
		Probe:      dst.String(),
		Expected:   want,
		Actual:     got,
		Violation:  got != want,
		Trace:      trace,
	}
}

// Violations filters findings down to the failed ones.
func Violations(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Violation {
			out = append(out, f)
		}
	}
	return out
}
