// Package validate checks a TopologySpec for internal consistency before
// any graph is built or any provider call is made.
package validate

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/eleven-am/netform/internal/domain"
)

type labeledPrefix struct {
	label  string
	prefix netip.Prefix
}

// Validate runs the checks in a fixed order and returns the first failure
// as a *domain.ValidationError.
func Validate(spec domain.TopologySpec) error {
	n := len(spec.AvailabilityZones)
	if n == 0 || len(spec.PublicSubnetCIDRs) != n || len(spec.PrivateSubnetCIDRs) != n {
		return &domain.ValidationError{
			Reason: domain.ReasonLengthMismatch,
			Detail: fmt.Sprintf("availability_zones=%d public_subnet_cidrs=%d private_subnet_cidrs=%d",
				n, len(spec.PublicSubnetCIDRs), len(spec.PrivateSubnetCIDRs)),
		}
	}

	vpc, err := parseCIDR(spec.VPCCIDR)
	if err != nil {
		return &domain.ValidationError{
			Reason: domain.ReasonMalformedCIDR,
			Detail: fmt.Sprintf("vpc_cidr %q: %v", spec.VPCCIDR, err),
		}
	}

	subnets := make([]labeledPrefix, 0, 2*n)
	for i, c := range spec.PublicSubnetCIDRs {
		p, err := subnetPrefix(vpc, fmt.Sprintf("public_subnet_cidrs[%d]", i), c)
		if err != nil {
			return err
		}
		subnets = append(subnets, p)
	}
	for i, c := range spec.PrivateSubnetCIDRs {
		p, err := subnetPrefix(vpc, fmt.Sprintf("private_subnet_cidrs[%d]", i), c)
		if err != nil {
			return err
		}
		subnets = append(subnets, p)
	}

	for i := 0; i < len(subnets); i++ {
		for j := i + 1; j < len(subnets); j++ {
			if subnets[i].prefix.Overlaps(subnets[j].prefix) {
				return &domain.ValidationError{
					Reason: domain.ReasonCIDROverlap,
					Detail: fmt.Sprintf("%s %s overlaps %s %s",
						subnets[i].label, subnets[i].prefix, subnets[j].label, subnets[j].prefix),
				}
			}
		}
	}

	for i, az := range spec.AvailabilityZones {
		if strings.TrimSpace(az) == "" {
			return &domain.ValidationError{
				Reason: domain.ReasonEmptyAvailabilityZone,
				Detail: fmt.Sprintf("availability_zones[%d] is empty", i),
			}
		}
	}

	return nil
}

func subnetPrefix(vpc netip.Prefix, label, cidr string) (labeledPrefix, error) {
	p, err := parseCIDR(cidr)
	if err != nil {
		return labeledPrefix{}, &domain.ValidationError{
			Reason: domain.ReasonCIDROutOfRange,
			Detail: fmt.Sprintf("%s %q: %v", label, cidr, err),
		}
	}
	if !Contains(vpc, p) {
		return labeledPrefix{}, &domain.ValidationError{
			Reason: domain.ReasonCIDROutOfRange,
			Detail: fmt.Sprintf("%s %s is not inside vpc_cidr %s", label, p, vpc),
		}
	}
	return labeledPrefix{label: label, prefix: p}, nil
}

// parseCIDR accepts IPv4 CIDRs only. Host bits must be zero.
func parseCIDR(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, err
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("not an IPv4 CIDR")
	}
	if p.Masked() != p {
		return netip.Prefix{}, fmt.Errorf("host bits set, expected %s", p.Masked())
	}
	return p, nil
}

// Contains reports whether inner lies entirely within outer.
func Contains(outer, inner netip.Prefix) bool {
	return outer.Bits() <= inner.Bits() && outer.Contains(inner.Addr())
}
