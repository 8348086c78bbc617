package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"

	"github.com/eleven-am/netform/internal/domain"
)

var notFoundCodes = map[string]struct{}{
	"InvalidVpcID.NotFound":                   {},
	"InvalidSubnetID.NotFound":                {},
	"InvalidInternetGatewayID.NotFound":       {},
	"InvalidRouteTableID.NotFound":            {},
	"InvalidAssociationID.NotFound":           {},
	"InvalidRoute.NotFound":                   {},
	"InvalidRouteTableAssociationID.NotFound": {},
}

var retryables = retry.IsErrorRetryables(retry.DefaultRetryables)

// classify turns an EC2 or client error into a *domain.ProviderError.
// NotFound codes also match domain.ErrNotFound.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return &domain.ProviderError{Code: "NotFound", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.ProviderError{Code: "Timeout", Retryable: true, Err: err}
	case errors.Is(err, context.Canceled):
		return &domain.ProviderError{Code: "Canceled", Retryable: true, Err: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := notFoundCodes[code]; ok {
			return &domain.ProviderError{Code: code, Err: fmt.Errorf("%w: %w", domain.ErrNotFound, err)}
		}
		_, throttle := retry.DefaultThrottleErrorCodes[code]
		_, transient := retry.DefaultRetryableErrorCodes[code]
		return &domain.ProviderError{
			Code:      code,
			Retryable: throttle || transient || retryables.IsErrorRetryable(err) == aws.TrueTernary,
			Err:       err,
		}
	}

	return &domain.ProviderError{
		Code:      "ClientError",
		Retryable: retryables.IsErrorRetryable(err) == aws.TrueTernary,
		Err:       err,
	}
}

// Provider adapts Client to the reconciler's resource-at-a-time interface.
type Provider struct {
	client  *Client
	session *Session
}

var _ domain.Provider = (*Provider)(nil)

func NewProvider(client *Client) *Provider {
	return &Provider{client: client}
}

// NewSessionProvider asks the session for a client on every call, so
// assumed-role credentials are refreshed during long runs.
func NewSessionProvider(s *Session) *Provider {
	return &Provider{session: s}
}

func (p *Provider) clientFor(ctx context.Context) (*Client, error) {
	if p.session == nil {
		return p.client, nil
	}
	return p.session.Client(ctx)
}

func (p *Provider) Create(ctx context.Context, node domain.ResourceNode, attrs domain.Attributes) (string, error) {
	id, err := p.create(ctx, node.Kind, attrs)
	if err != nil {
		err = classify(fmt.Errorf("%s: %w", node.LogicalName, err))
		var perr *domain.ProviderError
		if id != "" && errors.As(err, &perr) {
			perr.OrphanID = id
		}
		return "", err
	}
	return id, nil
}

func (p *Provider) create(ctx context.Context, kind domain.ResourceKind, attrs domain.Attributes) (string, error) {
	c, err := p.clientFor(ctx)
	if err != nil {
		return "", err
	}
	switch kind {
	case domain.KindVPC:
		return c.CreateVPC(ctx, attrs[domain.AttrCIDRBlock], attrs.Tags())
	case domain.KindInternetGateway:
		return c.CreateInternetGateway(ctx, attrs[domain.AttrVPC], attrs.Tags())
	case domain.KindSubnet:
		return c.CreateSubnet(ctx, attrs[domain.AttrVPC], attrs[domain.AttrCIDRBlock], attrs[domain.AttrAvailabilityZone], attrs.Tags())
	case domain.KindRouteTable:
		return c.CreateRouteTable(ctx, attrs[domain.AttrVPC], attrs.Routes(), attrs.Tags())
	case domain.KindRouteTableAssociation:
		return c.AssociateRouteTable(ctx, attrs[domain.AttrRouteTable], attrs[domain.AttrSubnet])
	}
	return "", fmt.Errorf("create: unsupported kind %q", kind)
}

// Update applies in-place changes: routes of a route table and tags of
// every taggable kind. Associations have nothing to update.
func (p *Provider) Update(ctx context.Context, kind domain.ResourceKind, providerID string, attrs domain.Attributes) error {
	c, err := p.clientFor(ctx)
	if err != nil {
		return classify(err)
	}
	switch kind {
	case domain.KindRouteTable:
		if err = c.SyncRoutes(ctx, providerID, attrs.Routes()); err == nil {
			err = c.SetTags(ctx, providerID, attrs.Tags())
		}
	case domain.KindVPC, domain.KindInternetGateway, domain.KindSubnet:
		err = c.SetTags(ctx, providerID, attrs.Tags())
	case domain.KindRouteTableAssociation:
	default:
		err = fmt.Errorf("update: unsupported kind %q", kind)
	}
	return classify(err)
}

// Describe reads the live resource back in node attribute form.
func (p *Provider) Describe(ctx context.Context, kind domain.ResourceKind, providerID string) (domain.Attributes, error) {
	c, err := p.clientFor(ctx)
	if err != nil {
		return nil, classify(err)
	}
	switch kind {
	case domain.KindVPC:
		d, err := c.GetVPC(ctx, providerID)
		if err != nil {
			return nil, classify(err)
		}
		return vpcAttributes(d), nil
	case domain.KindInternetGateway:
		d, err := c.GetInternetGateway(ctx, providerID)
		if err != nil {
			return nil, classify(err)
		}
		return internetGatewayAttributes(d), nil
	case domain.KindSubnet:
		d, err := c.GetSubnet(ctx, providerID)
		if err != nil {
			return nil, classify(err)
		}
		return subnetAttributes(d), nil
	case domain.KindRouteTable:
		d, err := c.GetRouteTable(ctx, providerID)
		if err != nil {
			return nil, classify(err)
		}
		return routeTableAttributes(d), nil
	case domain.KindRouteTableAssociation:
		rt, assoc, err := c.GetRouteTableAssociation(ctx, providerID)
		if err != nil {
			return nil, classify(err)
		}
		return domain.Attributes{
			domain.AttrRouteTable: rt.ID,
			domain.AttrSubnet:     assoc.SubnetID,
		}, nil
	}
	return nil, classify(fmt.Errorf("describe: unsupported kind %q", kind))
}

func (p *Provider) Delete(ctx context.Context, kind domain.ResourceKind, providerID string) error {
	c, err := p.clientFor(ctx)
	if err != nil {
		return classify(err)
	}
	switch kind {
	case domain.KindVPC:
		err = c.DeleteVPC(ctx, providerID)
	case domain.KindInternetGateway:
		err = c.DeleteInternetGateway(ctx, providerID)
	case domain.KindSubnet:
		err = c.DeleteSubnet(ctx, providerID)
	case domain.KindRouteTable:
		err = c.DeleteRouteTable(ctx, providerID)
	case domain.KindRouteTableAssociation:
		err = c.DisassociateRouteTable(ctx, providerID)
	default:
		err = fmt.Errorf("delete: unsupported kind %q", kind)
	}
	return classify(err)
}

func (p *Provider) Lookup(ctx context.Context, node domain.ResourceNode, attrs domain.Attributes) (string, error) {
	c, err := p.clientFor(ctx)
	if err != nil {
		return "", classify(err)
	}
	var id string
	if node.Kind == domain.KindRouteTableAssociation {
		id, err = c.findAssociation(ctx, attrs[domain.AttrRouteTable], attrs[domain.AttrSubnet])
	} else {
		id, err = c.FindByName(ctx, node.Kind, attrs[domain.AttrName], attrs[domain.AttrVPC])
	}
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}
