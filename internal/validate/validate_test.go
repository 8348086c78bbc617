package validate

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/eleven-am/netform/internal/domain"
)

func validSpec() domain.TopologySpec {
	return domain.TopologySpec{
		VPCCIDR:            "10.0.0.0/16",
		AvailabilityZones:  []string{"a", "b"},
		PublicSubnetCIDRs:  []string{"10.0.1.0/24", "10.0.2.0/24"},
		PrivateSubnetCIDRs: []string{"10.0.101.0/24", "10.0.102.0/24"},
	}
}

func reasonOf(t *testing.T, err error) domain.ValidationReason {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %T (%v)", err, err)
	}
	return verr.Reason
}

func TestValidate_ValidSpec(t *testing.T) {
	if err := Validate(validSpec()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.TopologySpec)
		reason domain.ValidationReason
	}{
		{
			name:   "empty lists",
			mutate: func(s *domain.TopologySpec) { *s = domain.TopologySpec{VPCCIDR: "10.0.0.0/16"} },
			reason: domain.ReasonLengthMismatch,
		},
		{
			name:   "fewer private subnets",
			mutate: func(s *domain.TopologySpec) { s.PrivateSubnetCIDRs = s.PrivateSubnetCIDRs[:1] },
			reason: domain.ReasonLengthMismatch,
		},
		{
			name:   "extra availability zone",
			mutate: func(s *domain.TopologySpec) { s.AvailabilityZones = append(s.AvailabilityZones, "c") },
			reason: domain.ReasonLengthMismatch,
		},
		{
			name: "length mismatch wins over bad cidrs",
			mutate: func(s *domain.TopologySpec) {
				s.VPCCIDR = "garbage"
				s.PublicSubnetCIDRs = []string{"nope"}
			},
			reason: domain.ReasonLengthMismatch,
		},
		{
			name:   "malformed vpc cidr",
			mutate: func(s *domain.TopologySpec) { s.VPCCIDR = "10.0.0.0/33" },
			reason: domain.ReasonMalformedCIDR,
		},
		{
			name:   "vpc cidr with host bits",
			mutate: func(s *domain.TopologySpec) { s.VPCCIDR = "10.0.0.1/16" },
			reason: domain.ReasonMalformedCIDR,
		},
		{
			name:   "ipv6 vpc cidr",
			mutate: func(s *domain.TopologySpec) { s.VPCCIDR = "2001:db8::/56" },
			reason: domain.ReasonMalformedCIDR,
		},
		{
			name:   "public subnet outside vpc",
			mutate: func(s *domain.TopologySpec) { s.PublicSubnetCIDRs[1] = "10.1.2.0/24" },
			reason: domain.ReasonCIDROutOfRange,
		},
		{
			name:   "subnet larger than vpc",
			mutate: func(s *domain.TopologySpec) { s.PrivateSubnetCIDRs[0] = "10.0.0.0/8" },
			reason: domain.ReasonCIDROutOfRange,
		},
		{
			name:   "malformed subnet cidr",
			mutate: func(s *domain.TopologySpec) { s.PrivateSubnetCIDRs[0] = "10.0.101.0" },
			reason: domain.ReasonCIDROutOfRange,
		},
		{
			name:   "public overlaps private",
			mutate: func(s *domain.TopologySpec) { s.PrivateSubnetCIDRs[0] = "10.0.1.0/25" },
			reason: domain.ReasonCIDROverlap,
		},
		{
			name:   "public duplicates",
			mutate: func(s *domain.TopologySpec) { s.PublicSubnetCIDRs[1] = "10.0.1.0/24" },
			reason: domain.ReasonCIDROverlap,
		},
		{
			name:   "blank availability zone",
			mutate: func(s *domain.TopologySpec) { s.AvailabilityZones[1] = " " },
			reason: domain.ReasonEmptyAvailabilityZone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			if got := reasonOf(t, Validate(spec)); got != tt.reason {
				t.Errorf("reason = %s, want %s", got, tt.reason)
			}
		})
	}
}

func TestValidate_MismatchAlwaysLengthMismatch(t *testing.T) {
	cidrs := []string{"10.0.1.0/24", "bogus", "10.9.0.0/16", "10.0.1.0/25"}
	for pub := 0; pub <= 3; pub++ {
		for priv := 0; priv <= 3; priv++ {
			for azs := 0; azs <= 3; azs++ {
				if pub == priv && priv == azs && azs > 0 {
					continue
				}
				spec := domain.TopologySpec{
					VPCCIDR:            "10.0.0.0/16",
					AvailabilityZones:  make([]string, azs),
					PublicSubnetCIDRs:  cidrs[:pub],
					PrivateSubnetCIDRs: cidrs[:priv],
				}
				if got := reasonOf(t, Validate(spec)); got != domain.ReasonLengthMismatch {
					t.Fatalf("pub=%d priv=%d azs=%d: reason = %s", pub, priv, azs, got)
				}
			}
		}
	}
}

func TestContains(t *testing.T) {
	outer := netip.MustParsePrefix("10.0.0.0/16")
	if !Contains(outer, netip.MustParsePrefix("10.0.255.0/24")) {
		t.Error("expected 10.0.255.0/24 inside 10.0.0.0/16")
	}
	if Contains(outer, netip.MustParsePrefix("10.0.0.0/15")) {
		t.Error("a wider prefix must not be contained")
	}
	if !Contains(outer, outer) {
		t.Error("a prefix contains itself")
	}
}
