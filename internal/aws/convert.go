package aws

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/eleven-am/netform/internal/domain"
)

func toVPCData(vpc *ec2types.Vpc) *domain.VPCData {
	return &domain.VPCData{
		ID:        derefString(vpc.VpcId),
		CIDRBlock: derefString(vpc.CidrBlock),
		State:     string(vpc.State),
		Tags:      tagsToMap(vpc.Tags),
	}
}

func toSubnetData(subnet *ec2types.Subnet) *domain.SubnetData {
	return &domain.SubnetData{
		ID:               derefString(subnet.SubnetId),
		VPCID:            derefString(subnet.VpcId),
		CIDRBlock:        derefString(subnet.CidrBlock),
		AvailabilityZone: derefString(subnet.AvailabilityZone),
		Tags:             tagsToMap(subnet.Tags),
	}
}

func toInternetGatewayData(igw *ec2types.InternetGateway) *domain.InternetGatewayData {
	data := &domain.InternetGatewayData{
		ID:   derefString(igw.InternetGatewayId),
		Tags: tagsToMap(igw.Tags),
	}
	for _, att := range igw.Attachments {
		if att.VpcId != nil {
			data.AttachedVPCIDs = append(data.AttachedVPCIDs, *att.VpcId)
		}
	}
	return data
}

func toRouteTableData(rt *ec2types.RouteTable) *domain.RouteTableData {
	data := &domain.RouteTableData{
		ID:    derefString(rt.RouteTableId),
		VPCID: derefString(rt.VpcId),
		Tags:  tagsToMap(rt.Tags),
	}
	for _, r := range rt.Routes {
		if r.DestinationCidrBlock == nil {
			continue
		}
		targetType, targetID := routeTarget(r)
		data.Routes = append(data.Routes, domain.Route{
			DestinationCIDR: *r.DestinationCidrBlock,
			PrefixLength:    prefixLength(*r.DestinationCidrBlock),
			TargetType:      targetType,
			TargetID:        targetID,
		})
	}
	for _, a := range rt.Associations {
		data.Associations = append(data.Associations, domain.RouteTableAssociation{
			ID:       derefString(a.RouteTableAssociationId),
			SubnetID: derefString(a.SubnetId),
			Main:     derefBool(a.Main),
		})
	}
	return data
}

func routeTarget(r ec2types.Route) (string, string) {
	switch {
	case r.GatewayId != nil && *r.GatewayId == "local":
		return "local", "local"
	case r.GatewayId != nil && strings.HasPrefix(*r.GatewayId, "igw-"):
		return "internet-gateway", *r.GatewayId
	case r.GatewayId != nil:
		return "gateway", *r.GatewayId
	case r.NatGatewayId != nil:
		return "nat-gateway", *r.NatGatewayId
	case r.TransitGatewayId != nil:
		return "transit-gateway", *r.TransitGatewayId
	case r.VpcPeeringConnectionId != nil:
		return "vpc-peering", *r.VpcPeeringConnectionId
	case r.NetworkInterfaceId != nil:
		return "network-interface", *r.NetworkInterfaceId
	}
	return "unknown", ""
}

func prefixLength(cidr string) int {
	if idx := strings.LastIndex(cidr, "/"); idx >= 0 {
		if n, err := strconv.Atoi(cidr[idx+1:]); err == nil {
			return n
		}
	}
	return 0
}

func tagsToMap(tags []ec2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for _, t := range tags {
		out[derefString(t.Key)] = derefString(t.Value)
	}
	return out
}

func toEC2Tags(tags map[string]string) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for _, k := range sortedKeys(tags) {
		out = append(out, ec2types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func tagSpecifications(resourceType ec2types.ResourceType, tags map[string]string) []ec2types.TagSpecification {
	if len(tags) == 0 {
		return nil
	}
	return []ec2types.TagSpecification{{ResourceType: resourceType, Tags: toEC2Tags(tags)}}
}

// tagAttributes flattens tags into name and tag.* attributes.
func tagAttributes(attrs domain.Attributes, tags map[string]string) {
	for k, v := range tags {
		if k == "Name" {
			attrs[domain.AttrName] = v
			continue
		}
		if strings.HasPrefix(k, "aws:") {
			continue
		}
		attrs[domain.TagPrefix+k] = v
	}
}

func vpcAttributes(d *domain.VPCData) domain.Attributes {
	attrs := domain.Attributes{domain.AttrCIDRBlock: d.CIDRBlock}
	tagAttributes(attrs, d.Tags)
	return attrs
}

func subnetAttributes(d *domain.SubnetData) domain.Attributes {
	attrs := domain.Attributes{
		domain.AttrCIDRBlock:        d.CIDRBlock,
		domain.AttrAvailabilityZone: d.AvailabilityZone,
		domain.AttrVPC:              d.VPCID,
	}
	tagAttributes(attrs, d.Tags)
	return attrs
}

func internetGatewayAttributes(d *domain.InternetGatewayData) domain.Attributes {
	attrs := domain.Attributes{}
	if len(d.AttachedVPCIDs) > 0 {
		attrs[domain.AttrVPC] = d.AttachedVPCIDs[0]
	}
	tagAttributes(attrs, d.Tags)
	return attrs
}

// routeTableAttributes omits the implicit local route.
func routeTableAttributes(d *domain.RouteTableData) domain.Attributes {
	attrs := domain.Attributes{domain.AttrVPC: d.VPCID}
	for _, r := range d.Routes {
		if r.TargetType == "local" {
			continue
		}
		attrs[domain.RoutePrefix+r.DestinationCIDR] = r.TargetID
	}
	tagAttributes(attrs, d.Tags)
	return attrs
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
