package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/eleven-am/netform/internal/domain"
)

func (c *Client) CreateVPC(ctx context.Context, cidr string, tags map[string]string) (string, error) {
	out, err := c.ec2Client.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(cidr),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeVpc, tags),
	})
	if err != nil {
		return "", fmt.Errorf("create vpc %s: %w", cidr, err)
	}
	vpcID := derefString(out.Vpc.VpcId)

	if c.waitTimeout > 0 {
		waiter := ec2.NewVpcAvailableWaiter(c.ec2Client)
		if err := waiter.Wait(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{vpcID}}, c.waitTimeout); err != nil {
			return vpcID, fmt.Errorf("wait for vpc %s: %w", vpcID, err)
		}
	}
	return vpcID, nil
}

func (c *Client) GetVPC(ctx context.Context, vpcID string) (*domain.VPCData, error) {
	key := c.cacheKey("vpc", vpcID)
	if v, ok := c.cache.get(key); ok {
		return v.(*domain.VPCData), nil
	}
	out, err := c.ec2Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		VpcIds: []string{vpcID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe vpc %s: %w", vpcID, err)
	}
	if len(out.Vpcs) == 0 {
		return nil, fmt.Errorf("vpc %s: %w", vpcID, domain.ErrNotFound)
	}
	data := toVPCData(&out.Vpcs[0])
	c.cache.set(key, data)
	return data, nil
}

func (c *Client) DeleteVPC(ctx context.Context, vpcID string) error {
	c.cache.invalidate(c.cacheKey("vpc", vpcID))
	if _, err := c.ec2Client.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(vpcID)}); err != nil {
		return fmt.Errorf("delete vpc %s: %w", vpcID, err)
	}
	return nil
}

// CreateInternetGateway creates and attaches an IGW. A failed attach
// deletes the detached gateway again.
func (c *Client) CreateInternetGateway(ctx context.Context, vpcID string, tags map[string]string) (string, error) {
	out, err := c.ec2Client.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeInternetGateway, tags),
	})
	if err != nil {
		return "", fmt.Errorf("create internet gateway: %w", err)
	}
	igwID := derefString(out.InternetGateway.InternetGatewayId)

	if err := c.AttachInternetGateway(ctx, igwID, vpcID); err != nil {
		if _, derr := c.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
		}); derr != nil {
			return igwID, fmt.Errorf("%w (cleanup of %s also failed: %v)", err, igwID, derr)
		}
		return "", err
	}
	return igwID, nil
}

func (c *Client) AttachInternetGateway(ctx context.Context, igwID, vpcID string) error {
	c.cache.invalidate(c.cacheKey("igw", igwID))
	_, err := c.ec2Client.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("attach internet gateway %s to %s: %w", igwID, vpcID, err)
	}
	return nil
}

func (c *Client) GetInternetGateway(ctx context.Context, igwID string) (*domain.InternetGatewayData, error) {
	key := c.cacheKey("igw", igwID)
	if v, ok := c.cache.get(key); ok {
		return v.(*domain.InternetGatewayData), nil
	}
	out, err := c.ec2Client.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		InternetGatewayIds: []string{igwID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe internet gateway %s: %w", igwID, err)
	}
	if len(out.InternetGateways) == 0 {
		return nil, fmt.Errorf("internet gateway %s: %w", igwID, domain.ErrNotFound)
	}
	data := toInternetGatewayData(&out.InternetGateways[0])
	c.cache.set(key, data)
	return data, nil
}

// DeleteInternetGateway detaches the gateway from every VPC before deleting it.
func (c *Client) DeleteInternetGateway(ctx context.Context, igwID string) error {
	igw, err := c.GetInternetGateway(ctx, igwID)
	if err != nil {
		return err
	}
	c.cache.invalidate(c.cacheKey("igw", igwID))
	for _, vpcID := range igw.AttachedVPCIDs {
		if _, err := c.ec2Client.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
			InternetGatewayId: aws.String(igwID),
			VpcId:             aws.String(vpcID),
		}); err != nil {
			return fmt.Errorf("detach internet gateway %s from %s: %w", igwID, vpcID, err)
		}
	}
	if _, err := c.ec2Client.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
	}); err != nil {
		return fmt.Errorf("delete internet gateway %s: %w", igwID, err)
	}
	return nil
}

func (c *Client) CreateSubnet(ctx context.Context, vpcID, cidr, az string, tags map[string]string) (string, error) {
	out, err := c.ec2Client.CreateSubnet(ctx, &ec2.CreateSubnetInput{
		VpcId:             aws.String(vpcID),
		CidrBlock:         aws.String(cidr),
		AvailabilityZone:  aws.String(az),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeSubnet, tags),
	})
	if err != nil {
		return "", fmt.Errorf("create subnet %s in %s: %w", cidr, az, err)
	}
	subnetID := derefString(out.Subnet.SubnetId)

	if c.waitTimeout > 0 {
		waiter := ec2.NewSubnetAvailableWaiter(c.ec2Client)
		if err := waiter.Wait(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{subnetID}}, c.waitTimeout); err != nil {
			return subnetID, fmt.Errorf("wait for subnet %s: %w", subnetID, err)
		}
	}
	return subnetID, nil
}

func (c *Client) GetSubnet(ctx context.Context, subnetID string) (*domain.SubnetData, error) {
	key := c.cacheKey("subnet", subnetID)
	if v, ok := c.cache.get(key); ok {
		return v.(*domain.SubnetData), nil
	}
	out, err := c.ec2Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: []string{subnetID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe subnet %s: %w", subnetID, err)
	}
	if len(out.Subnets) == 0 {
		return nil, fmt.Errorf("subnet %s: %w", subnetID, domain.ErrNotFound)
	}
	data := toSubnetData(&out.Subnets[0])
	c.cache.set(key, data)
	return data, nil
}

func (c *Client) DeleteSubnet(ctx context.Context, subnetID string) error {
	c.cache.invalidate(c.cacheKey("subnet", subnetID))
	if _, err := c.ec2Client.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(subnetID)}); err != nil {
		return fmt.Errorf("delete subnet %s: %w", subnetID, err)
	}
	return nil
}

// CreateRouteTable creates the table and its routes. If a route cannot be
// added the table is deleted again so no half-built table is left behind.
func (c *Client) CreateRouteTable(ctx context.Context, vpcID string, routes map[string]string, tags map[string]string) (string, error) {
	out, err := c.ec2Client.CreateRouteTable(ctx, &ec2.CreateRouteTableInput{
		VpcId:             aws.String(vpcID),
		TagSpecifications: tagSpecifications(ec2types.ResourceTypeRouteTable, tags),
	})
	if err != nil {
		return "", fmt.Errorf("create route table in %s: %w", vpcID, err)
	}
	rtID := derefString(out.RouteTable.RouteTableId)

	if err := c.SyncRoutes(ctx, rtID, routes); err != nil {
		if _, derr := c.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
			RouteTableId: aws.String(rtID),
		}); derr != nil {
			return rtID, fmt.Errorf("%w (cleanup of %s also failed: %v)", err, rtID, derr)
		}
		return "", err
	}
	return rtID, nil
}

func (c *Client) GetRouteTable(ctx context.Context, rtID string) (*domain.RouteTableData, error) {
	key := c.cacheKey("rt", rtID)
	if v, ok := c.cache.get(key); ok {
		return v.(*domain.RouteTableData), nil
	}
	out, err := c.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{rtID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe route table %s: %w", rtID, err)
	}
	if len(out.RouteTables) == 0 {
		return nil, fmt.Errorf("route table %s: %w", rtID, domain.ErrNotFound)
	}
	data := toRouteTableData(&out.RouteTables[0])
	c.cache.set(key, data)
	return data, nil
}

// SyncRoutes converges the non-local routes of a table to desired, which
// maps destination CIDR to an internet gateway id.
func (c *Client) SyncRoutes(ctx context.Context, rtID string, desired map[string]string) error {
	c.cache.invalidate(c.cacheKey("rt", rtID))
	current, err := c.GetRouteTable(ctx, rtID)
	if err != nil {
		return err
	}
	c.cache.invalidate(c.cacheKey("rt", rtID))

	existing := make(map[string]string)
	for _, r := range current.Routes {
		if r.TargetType != "local" {
			existing[r.DestinationCIDR] = r.TargetID
		}
	}

	for _, dest := range sortedKeys(desired) {
		target := desired[dest]
		have, ok := existing[dest]
		switch {
		case !ok:
			if _, err := c.ec2Client.CreateRoute(ctx, &ec2.CreateRouteInput{
				RouteTableId:         aws.String(rtID),
				DestinationCidrBlock: aws.String(dest),
				GatewayId:            aws.String(target),
			}); err != nil {
				return fmt.Errorf("create route %s -> %s in %s: %w", dest, target, rtID, err)
			}
		case have != target:
			if _, err := c.ec2Client.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
				RouteTableId:         aws.String(rtID),
				DestinationCidrBlock: aws.String(dest),
				GatewayId:            aws.String(target),
			}); err != nil {
				return fmt.Errorf("replace route %s -> %s in %s: %w", dest, target, rtID, err)
			}
		}
	}

	for _, dest := range sortedKeys(existing) {
		if _, ok := desired[dest]; ok {
			continue
		}
		if _, err := c.ec2Client.DeleteRoute(ctx, &ec2.DeleteRouteInput{
			RouteTableId:         aws.String(rtID),
			DestinationCidrBlock: aws.String(dest),
		}); err != nil {
			return fmt.Errorf("delete route %s from %s: %w", dest, rtID, err)
		}
	}
	return nil
}

func (c *Client) DeleteRouteTable(ctx context.Context, rtID string) error {
	c.cache.invalidate(c.cacheKey("rt", rtID))
	if _, err := c.ec2Client.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{RouteTableId: aws.String(rtID)}); err != nil {
		return fmt.Errorf("delete route table %s: %w", rtID, err)
	}
	return nil
}

func (c *Client) AssociateRouteTable(ctx context.Context, rtID, subnetID string) (string, error) {
	c.cache.invalidate(c.cacheKey("rt", rtID))
	out, err := c.ec2Client.AssociateRouteTable(ctx, &ec2.AssociateRouteTableInput{
		RouteTableId: aws.String(rtID),
		SubnetId:     aws.String(subnetID),
	})
	if err != nil {
		return "", fmt.Errorf("associate route table %s with %s: %w", rtID, subnetID, err)
	}
	return derefString(out.AssociationId), nil
}

// GetRouteTableAssociation returns the table holding associationID together
// with the association itself.
func (c *Client) GetRouteTableAssociation(ctx context.Context, associationID string) (*domain.RouteTableData, *domain.RouteTableAssociation, error) {
	out, err := c.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("association.route-table-association-id"), Values: []string{associationID}},
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("describe association %s: %w", associationID, err)
	}
	for i := range out.RouteTables {
		rt := toRouteTableData(&out.RouteTables[i])
		for j := range rt.Associations {
			if rt.Associations[j].ID == associationID {
				return rt, &rt.Associations[j], nil
			}
		}
	}
	return nil, nil, fmt.Errorf("association %s: %w", associationID, domain.ErrNotFound)
}

func (c *Client) findAssociation(ctx context.Context, rtID, subnetID string) (string, error) {
	out, err := c.ec2Client.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("association.subnet-id"), Values: []string{subnetID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe route tables for subnet %s: %w", subnetID, err)
	}
	for _, rt := range out.RouteTables {
		if derefString(rt.RouteTableId) != rtID {
			continue
		}
		for _, a := range rt.Associations {
			if derefString(a.SubnetId) == subnetID {
				return derefString(a.RouteTableAssociationId), nil
			}
		}
	}
	return "", fmt.Errorf("association of %s with %s: %w", subnetID, rtID, domain.ErrNotFound)
}

func (c *Client) DisassociateRouteTable(ctx context.Context, associationID string) error {
	c.cache.invalidatePrefix(c.cacheKey("rt", ""))
	if _, err := c.ec2Client.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
		AssociationId: aws.String(associationID),
	}); err != nil {
		return fmt.Errorf("disassociate %s: %w", associationID, err)
	}
	return nil
}

// SetTags upserts tags. Tags missing from the map are left alone.
func (c *Client) SetTags(ctx context.Context, resourceID string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	c.cache.invalidatePrefix(c.cacheKey(""))
	if _, err := c.ec2Client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      toEC2Tags(tags),
	}); err != nil {
		return fmt.Errorf("tag %s: %w", resourceID, err)
	}
	return nil
}
