package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/netform/internal/domain"
)

func TestChangedKeys(t *testing.T) {
	recorded := domain.Attributes{
		domain.AttrCIDRBlock: "10.0.1.0/24",
		domain.AttrName:      "netform-public-subnet-0",
		"tag.env":            "dev",
		"tag.old":            "x",
	}
	desired := domain.Attributes{
		domain.AttrCIDRBlock: "10.0.1.0/24",
		domain.AttrName:      "netform-public-subnet-0",
		"tag.env":            "prod",
		"tag.new":            "",
	}

	assert.Equal(t, []string{"tag.env", "tag.new", "tag.old"}, changedKeys(recorded, desired))
	assert.Empty(t, changedKeys(recorded, recorded.Clone()))
}

func TestReplacementFields(t *testing.T) {
	tests := []struct {
		name    string
		changed []string
		want    []string
	}{
		{"tags only", []string{"name", "tag.env"}, nil},
		{"routes only", []string{"route.0.0.0.0/0"}, nil},
		{"cidr", []string{domain.AttrCIDRBlock, "tag.env"}, []string{domain.AttrCIDRBlock}},
		{"association target", []string{domain.AttrRouteTable, domain.AttrSubnet}, []string{domain.AttrRouteTable, domain.AttrSubnet}},
		{"zone and vpc", []string{domain.AttrAvailabilityZone, domain.AttrVPC}, []string{domain.AttrAvailabilityZone, domain.AttrVPC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, replacementFields(tt.changed))
		})
	}
}

func TestResolve(t *testing.T) {
	node := domain.ResourceNode{
		LogicalName: "public-route-table",
		Attributes: domain.Attributes{
			domain.AttrVPC:    domain.Ref("vpc"),
			"route.0.0.0.0/0": domain.Ref("internet-gateway"),
			domain.AttrName:   "netform-public-route-table",
		},
	}
	prereqs := map[string]domain.NodeOutcome{
		"vpc":              {ProviderID: "vpc-1"},
		"internet-gateway": {},
	}

	_, err := resolve(node, prereqs, "")
	require.Error(t, err)

	attrs, err := resolve(node, prereqs, knownAfterApply)
	require.NoError(t, err)
	assert.Equal(t, "vpc-1", attrs[domain.AttrVPC])
	assert.Equal(t, knownAfterApply, attrs["route.0.0.0.0/0"])
	assert.Equal(t, domain.Ref("vpc"), node.Attributes[domain.AttrVPC], "input attributes are not modified")

	_, err = resolve(node, map[string]domain.NodeOutcome{"vpc": {ProviderID: "vpc-1"}}, "")
	assert.Error(t, err)
}
