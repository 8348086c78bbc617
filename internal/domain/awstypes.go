package domain

type SubnetData struct {
	ID               string
	VPCID            string
	CIDRBlock        string
	AvailabilityZone string
	Tags             map[string]string
}

type RouteTableData struct {
	ID           string
	VPCID        string
	Routes       []Route
	Associations []RouteTableAssociation
	Tags         map[string]string
}

type RouteTableAssociation struct {
	ID       string
	SubnetID string
	Main     bool
}

type Route struct {
	DestinationCIDR string
	PrefixLength    int
	TargetType      string
	TargetID        string
}

type VPCData struct {
	ID        string
	CIDRBlock string
	State     string
	Tags      map[string]string
}

type InternetGatewayData struct {
	ID             string
	AttachedVPCIDs []string
	Tags           map[string]string
}
