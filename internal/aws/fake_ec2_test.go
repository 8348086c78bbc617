package aws

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
)

// fakeEC2 is an in-memory EC2API. Filters understood: tag:Name, vpc-id,
// attachment.vpc-id, association.subnet-id and
// association.route-table-association-id.
type fakeEC2 struct {
	mu    sync.Mutex
	seq   int
	vpcs  map[string]*ec2types.Vpc
	igws  map[string]*ec2types.InternetGateway
	subs  map[string]*ec2types.Subnet
	rts   map[string]*ec2types.RouteTable
	fail  map[string]error
	calls []string
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{
		vpcs: make(map[string]*ec2types.Vpc),
		igws: make(map[string]*ec2types.InternetGateway),
		subs: make(map[string]*ec2types.Subnet),
		rts:  make(map[string]*ec2types.RouteTable),
		fail: make(map[string]error),
	}
}

func (f *fakeEC2) call(op string) error {
	f.calls = append(f.calls, op)
	return f.fail[op]
}

func (f *fakeEC2) id(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

func notFound(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "does not exist"}
}

func tagsFrom(specs []ec2types.TagSpecification) []ec2types.Tag {
	var tags []ec2types.Tag
	for _, s := range specs {
		tags = append(tags, s.Tags...)
	}
	return tags
}

func tagValue(tags []ec2types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}

func matches(filters []ec2types.Filter, values map[string][]string) bool {
	for _, f := range filters {
		have := values[aws.ToString(f.Name)]
		ok := false
		for _, want := range f.Values {
			for _, h := range have {
				if h == want {
					ok = true
				}
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func wanted(ids []string, id string) bool {
	if len(ids) == 0 {
		return true
	}
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}

func sortedIDs[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeEC2) CreateVpc(_ context.Context, in *ec2.CreateVpcInput, _ ...func(*ec2.Options)) (*ec2.CreateVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateVpc"); err != nil {
		return nil, err
	}
	vpc := &ec2types.Vpc{
		VpcId:     aws.String(f.id("vpc")),
		CidrBlock: in.CidrBlock,
		State:     ec2types.VpcStateAvailable,
		Tags:      tagsFrom(in.TagSpecifications),
	}
	f.vpcs[*vpc.VpcId] = vpc
	return &ec2.CreateVpcOutput{Vpc: vpc}, nil
}

func (f *fakeEC2) DescribeVpcs(_ context.Context, in *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeVpcs"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeVpcsOutput{}
	for _, id := range sortedIDs(f.vpcs) {
		v := f.vpcs[id]
		if !wanted(in.VpcIds, id) || !matches(in.Filters, map[string][]string{"tag:Name": {tagValue(v.Tags, "Name")}}) {
			continue
		}
		out.Vpcs = append(out.Vpcs, *v)
	}
	if len(in.VpcIds) > 0 && len(out.Vpcs) == 0 {
		return nil, notFound("InvalidVpcID.NotFound")
	}
	return out, nil
}

func (f *fakeEC2) DeleteVpc(_ context.Context, in *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteVpc"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.VpcId)
	if _, ok := f.vpcs[id]; !ok {
		return nil, notFound("InvalidVpcID.NotFound")
	}
	for _, s := range f.subs {
		if aws.ToString(s.VpcId) == id {
			return nil, &smithy.GenericAPIError{Code: "DependencyViolation", Message: "vpc has subnets"}
		}
	}
	delete(f.vpcs, id)
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeEC2) CreateInternetGateway(_ context.Context, in *ec2.CreateInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.CreateInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateInternetGateway"); err != nil {
		return nil, err
	}
	igw := &ec2types.InternetGateway{
		InternetGatewayId: aws.String(f.id("igw")),
		Tags:              tagsFrom(in.TagSpecifications),
	}
	f.igws[*igw.InternetGatewayId] = igw
	return &ec2.CreateInternetGatewayOutput{InternetGateway: igw}, nil
}

func (f *fakeEC2) AttachInternetGateway(_ context.Context, in *ec2.AttachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.AttachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AttachInternetGateway"); err != nil {
		return nil, err
	}
	igw, ok := f.igws[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, notFound("InvalidInternetGatewayID.NotFound")
	}
	igw.Attachments = append(igw.Attachments, ec2types.InternetGatewayAttachment{
		VpcId: in.VpcId,
		State: ec2types.AttachmentStatusAttached,
	})
	return &ec2.AttachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DetachInternetGateway(_ context.Context, in *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DetachInternetGateway"); err != nil {
		return nil, err
	}
	igw, ok := f.igws[aws.ToString(in.InternetGatewayId)]
	if !ok {
		return nil, notFound("InvalidInternetGatewayID.NotFound")
	}
	var kept []ec2types.InternetGatewayAttachment
	for _, a := range igw.Attachments {
		if aws.ToString(a.VpcId) != aws.ToString(in.VpcId) {
			kept = append(kept, a)
		}
	}
	igw.Attachments = kept
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *fakeEC2) DescribeInternetGateways(_ context.Context, in *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeInternetGateways"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeInternetGatewaysOutput{}
	for _, id := range sortedIDs(f.igws) {
		g := f.igws[id]
		var vpcs []string
		for _, a := range g.Attachments {
			vpcs = append(vpcs, aws.ToString(a.VpcId))
		}
		values := map[string][]string{"tag:Name": {tagValue(g.Tags, "Name")}, "attachment.vpc-id": vpcs}
		if !wanted(in.InternetGatewayIds, id) || !matches(in.Filters, values) {
			continue
		}
		out.InternetGateways = append(out.InternetGateways, *g)
	}
	if len(in.InternetGatewayIds) > 0 && len(out.InternetGateways) == 0 {
		return nil, notFound("InvalidInternetGatewayID.NotFound")
	}
	return out, nil
}

func (f *fakeEC2) DeleteInternetGateway(_ context.Context, in *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteInternetGateway"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.InternetGatewayId)
	igw, ok := f.igws[id]
	if !ok {
		return nil, notFound("InvalidInternetGatewayID.NotFound")
	}
	if len(igw.Attachments) > 0 {
		return nil, &smithy.GenericAPIError{Code: "DependencyViolation", Message: "gateway is attached"}
	}
	delete(f.igws, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *fakeEC2) CreateSubnet(_ context.Context, in *ec2.CreateSubnetInput, _ ...func(*ec2.Options)) (*ec2.CreateSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateSubnet"); err != nil {
		return nil, err
	}
	if _, ok := f.vpcs[aws.ToString(in.VpcId)]; !ok {
		return nil, notFound("InvalidVpcID.NotFound")
	}
	s := &ec2types.Subnet{
		SubnetId:         aws.String(f.id("subnet")),
		VpcId:            in.VpcId,
		CidrBlock:        in.CidrBlock,
		AvailabilityZone: in.AvailabilityZone,
		State:            ec2types.SubnetStateAvailable,
		Tags:             tagsFrom(in.TagSpecifications),
	}
	f.subs[*s.SubnetId] = s
	return &ec2.CreateSubnetOutput{Subnet: s}, nil
}

func (f *fakeEC2) DescribeSubnets(_ context.Context, in *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeSubnets"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeSubnetsOutput{}
	for _, id := range sortedIDs(f.subs) {
		s := f.subs[id]
		values := map[string][]string{"tag:Name": {tagValue(s.Tags, "Name")}, "vpc-id": {aws.ToString(s.VpcId)}}
		if !wanted(in.SubnetIds, id) || !matches(in.Filters, values) {
			continue
		}
		out.Subnets = append(out.Subnets, *s)
	}
	if len(in.SubnetIds) > 0 && len(out.Subnets) == 0 {
		return nil, notFound("InvalidSubnetID.NotFound")
	}
	return out, nil
}

func (f *fakeEC2) DeleteSubnet(_ context.Context, in *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteSubnet"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.SubnetId)
	if _, ok := f.subs[id]; !ok {
		return nil, notFound("InvalidSubnetID.NotFound")
	}
	delete(f.subs, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeEC2) CreateRouteTable(_ context.Context, in *ec2.CreateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateRouteTable"); err != nil {
		return nil, err
	}
	vpc, ok := f.vpcs[aws.ToString(in.VpcId)]
	if !ok {
		return nil, notFound("InvalidVpcID.NotFound")
	}
	rt := &ec2types.RouteTable{
		RouteTableId: aws.String(f.id("rtb")),
		VpcId:        in.VpcId,
		Routes: []ec2types.Route{
			{DestinationCidrBlock: vpc.CidrBlock, GatewayId: aws.String("local")},
		},
		Tags: tagsFrom(in.TagSpecifications),
	}
	f.rts[*rt.RouteTableId] = rt
	return &ec2.CreateRouteTableOutput{RouteTable: rt}, nil
}

func (f *fakeEC2) DescribeRouteTables(_ context.Context, in *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DescribeRouteTables"); err != nil {
		return nil, err
	}
	out := &ec2.DescribeRouteTablesOutput{}
	for _, id := range sortedIDs(f.rts) {
		rt := f.rts[id]
		var subnets, assocs []string
		for _, a := range rt.Associations {
			subnets = append(subnets, aws.ToString(a.SubnetId))
			assocs = append(assocs, aws.ToString(a.RouteTableAssociationId))
		}
		values := map[string][]string{
			"tag:Name":                               {tagValue(rt.Tags, "Name")},
			"vpc-id":                                 {aws.ToString(rt.VpcId)},
			"association.subnet-id":                  subnets,
			"association.route-table-association-id": assocs,
		}
		if !wanted(in.RouteTableIds, id) || !matches(in.Filters, values) {
			continue
		}
		cp := *rt
		cp.Routes = append([]ec2types.Route(nil), rt.Routes...)
		cp.Associations = append([]ec2types.RouteTableAssociation(nil), rt.Associations...)
		out.RouteTables = append(out.RouteTables, cp)
	}
	if len(in.RouteTableIds) > 0 && len(out.RouteTables) == 0 {
		return nil, notFound("InvalidRouteTableID.NotFound")
	}
	return out, nil
}

func (f *fakeEC2) DeleteRouteTable(_ context.Context, in *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteRouteTable"); err != nil {
		return nil, err
	}
	id := aws.ToString(in.RouteTableId)
	rt, ok := f.rts[id]
	if !ok {
		return nil, notFound("InvalidRouteTableID.NotFound")
	}
	if len(rt.Associations) > 0 {
		return nil, &smithy.GenericAPIError{Code: "DependencyViolation", Message: "route table has associations"}
	}
	delete(f.rts, id)
	return &ec2.DeleteRouteTableOutput{}, nil
}

func (f *fakeEC2) routeTable(id *string) (*ec2types.RouteTable, error) {
	rt, ok := f.rts[aws.ToString(id)]
	if !ok {
		return nil, notFound("InvalidRouteTableID.NotFound")
	}
	return rt, nil
}

func (f *fakeEC2) CreateRoute(_ context.Context, in *ec2.CreateRouteInput, _ ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateRoute"); err != nil {
		return nil, err
	}
	rt, err := f.routeTable(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	for _, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			return nil, &smithy.GenericAPIError{Code: "RouteAlreadyExists", Message: "route exists"}
		}
	}
	rt.Routes = append(rt.Routes, ec2types.Route{DestinationCidrBlock: in.DestinationCidrBlock, GatewayId: in.GatewayId})
	return &ec2.CreateRouteOutput{Return: aws.Bool(true)}, nil
}

func (f *fakeEC2) ReplaceRoute(_ context.Context, in *ec2.ReplaceRouteInput, _ ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("ReplaceRoute"); err != nil {
		return nil, err
	}
	rt, err := f.routeTable(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	for i, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			rt.Routes[i].GatewayId = in.GatewayId
			return &ec2.ReplaceRouteOutput{}, nil
		}
	}
	return nil, notFound("InvalidRoute.NotFound")
}

func (f *fakeEC2) DeleteRoute(_ context.Context, in *ec2.DeleteRouteInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DeleteRoute"); err != nil {
		return nil, err
	}
	rt, err := f.routeTable(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	for i, r := range rt.Routes {
		if aws.ToString(r.DestinationCidrBlock) == aws.ToString(in.DestinationCidrBlock) {
			rt.Routes = append(rt.Routes[:i], rt.Routes[i+1:]...)
			return &ec2.DeleteRouteOutput{}, nil
		}
	}
	return nil, notFound("InvalidRoute.NotFound")
}

func (f *fakeEC2) AssociateRouteTable(_ context.Context, in *ec2.AssociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.AssociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("AssociateRouteTable"); err != nil {
		return nil, err
	}
	rt, err := f.routeTable(in.RouteTableId)
	if err != nil {
		return nil, err
	}
	if _, ok := f.subs[aws.ToString(in.SubnetId)]; !ok {
		return nil, notFound("InvalidSubnetID.NotFound")
	}
	id := f.id("rtbassoc")
	rt.Associations = append(rt.Associations, ec2types.RouteTableAssociation{
		RouteTableAssociationId: aws.String(id),
		RouteTableId:            rt.RouteTableId,
		SubnetId:                in.SubnetId,
	})
	return &ec2.AssociateRouteTableOutput{AssociationId: aws.String(id)}, nil
}

func (f *fakeEC2) DisassociateRouteTable(_ context.Context, in *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("DisassociateRouteTable"); err != nil {
		return nil, err
	}
	for _, rt := range f.rts {
		for i, a := range rt.Associations {
			if aws.ToString(a.RouteTableAssociationId) == aws.ToString(in.AssociationId) {
				rt.Associations = append(rt.Associations[:i], rt.Associations[i+1:]...)
				return &ec2.DisassociateRouteTableOutput{}, nil
			}
		}
	}
	return nil, notFound("InvalidAssociationID.NotFound")
}

func (f *fakeEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.call("CreateTags"); err != nil {
		return nil, err
	}
	upsert := func(tags []ec2types.Tag) []ec2types.Tag {
		for _, nt := range in.Tags {
			replaced := false
			for i := range tags {
				if aws.ToString(tags[i].Key) == aws.ToString(nt.Key) {
					tags[i].Value = nt.Value
					replaced = true
				}
			}
			if !replaced {
				tags = append(tags, nt)
			}
		}
		return tags
	}
	for _, id := range in.Resources {
		switch {
		case f.vpcs[id] != nil:
			f.vpcs[id].Tags = upsert(f.vpcs[id].Tags)
		case f.igws[id] != nil:
			f.igws[id].Tags = upsert(f.igws[id].Tags)
		case f.subs[id] != nil:
			f.subs[id].Tags = upsert(f.subs[id].Tags)
		case f.rts[id] != nil:
			f.rts[id].Tags = upsert(f.rts[id].Tags)
		default:
			return nil, &smithy.GenericAPIError{Code: "InvalidID", Message: id}
		}
	}
	return &ec2.CreateTagsOutput{}, nil
}
