package domain

// DefaultTopologyName prefixes the Name tag of every resource when a
// topology does not set one.
const DefaultTopologyName = "netform"

// TopologySpec is the desired state of one VPC network.
type TopologySpec struct {
	Name               string            `json:"name,omitempty" yaml:"name,omitempty"`
	VPCCIDR            string            `json:"vpc_cidr" yaml:"vpc_cidr"`
	AvailabilityZones  []string          `json:"availability_zones" yaml:"availability_zones"`
	PublicSubnetCIDRs  []string          `json:"public_subnet_cidrs" yaml:"public_subnet_cidrs"`
	PrivateSubnetCIDRs []string          `json:"private_subnet_cidrs" yaml:"private_subnet_cidrs"`
	Tags               map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TopologyName returns the configured name or DefaultTopologyName.
func (s TopologySpec) TopologyName() string {
	if s.Name == "" {
		return DefaultTopologyName
	}
	return s.Name
}

type Visibility string

const (
	VisibilityNone    Visibility = ""
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)
