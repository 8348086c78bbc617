package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/eleven-am/netform/internal/domain"
)

func nameFilters(name, vpcKey, vpcID string) []ec2types.Filter {
	filters := []ec2types.Filter{{Name: aws.String("tag:Name"), Values: []string{name}}}
	if vpcKey != "" && vpcID != "" {
		filters = append(filters, ec2types.Filter{Name: aws.String(vpcKey), Values: []string{vpcID}})
	}
	return filters
}

// FindByName returns the id of the single resource of kind whose Name tag
// equals name, scoped to vpcID when the kind lives inside a VPC. More than
// one match is an error so a wrong resource is never adopted.
func (c *Client) FindByName(ctx context.Context, kind domain.ResourceKind, name, vpcID string) (string, error) {
	var ids []string
	var err error

	switch kind {
	case domain.KindVPC:
		p := ec2.NewDescribeVpcsPaginator(c.ec2Client, &ec2.DescribeVpcsInput{
			Filters: nameFilters(name, "", ""),
		})
		ids, err = collectIDs(ctx, p, func(out *ec2.DescribeVpcsOutput) []string {
			var ids []string
			for _, v := range out.Vpcs {
				ids = append(ids, derefString(v.VpcId))
			}
			return ids
		})
	case domain.KindInternetGateway:
		p := ec2.NewDescribeInternetGatewaysPaginator(c.ec2Client, &ec2.DescribeInternetGatewaysInput{
			Filters: nameFilters(name, "attachment.vpc-id", vpcID),
		})
		ids, err = collectIDs(ctx, p, func(out *ec2.DescribeInternetGatewaysOutput) []string {
			var ids []string
			for _, g := range out.InternetGateways {
				ids = append(ids, derefString(g.InternetGatewayId))
			}
			return ids
		})
	case domain.KindSubnet:
		p := ec2.NewDescribeSubnetsPaginator(c.ec2Client, &ec2.DescribeSubnetsInput{
			Filters: nameFilters(name, "vpc-id", vpcID),
		})
		ids, err = collectIDs(ctx, p, func(out *ec2.DescribeSubnetsOutput) []string {
			var ids []string
			for _, s := range out.Subnets {
				ids = append(ids, derefString(s.SubnetId))
			}
			return ids
		})
	case domain.KindRouteTable:
		p := ec2.NewDescribeRouteTablesPaginator(c.ec2Client, &ec2.DescribeRouteTablesInput{
			Filters: nameFilters(name, "vpc-id", vpcID),
		})
		ids, err = collectIDs(ctx, p, func(out *ec2.DescribeRouteTablesOutput) []string {
			var ids []string
			for _, rt := range out.RouteTables {
				ids = append(ids, derefString(rt.RouteTableId))
			}
			return ids
		})
	default:
		return "", fmt.Errorf("lookup %s by name: unsupported kind", kind)
	}
	if err != nil {
		return "", fmt.Errorf("lookup %s %s: %w", kind, name, err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%s %s: %w", kind, name, domain.ErrNotFound)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("lookup %s %s: %d resources share the name: %v", kind, name, len(ids), ids)
}
