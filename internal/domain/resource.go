package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

type ResourceKind string

const (
	KindVPC                   ResourceKind = "vpc"
	KindInternetGateway       ResourceKind = "internet_gateway"
	KindSubnet                ResourceKind = "subnet"
	KindRouteTable            ResourceKind = "route_table"
	KindRouteTableAssociation ResourceKind = "route_table_association"
)

// Attribute keys shared by the graph builder, the reconciler and providers.
const (
	AttrName             = "name"
	AttrCIDRBlock        = "cidr_block"
	AttrAvailabilityZone = "availability_zone"
	AttrVPC              = "vpc"
	AttrInternetGateway  = "internet_gateway"
	AttrSubnet           = "subnet"
	AttrRouteTable       = "route_table"
	AttrVisibility       = "visibility"

	RoutePrefix = "route."
	TagPrefix   = "tag."
	RefPrefix   = "ref:"

	DefaultRouteCIDR = "0.0.0.0/0"
)

// Attributes is a flat kind-specific key/value mapping.
type Attributes map[string]string

func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Hash fingerprints the attribute set. Ordering of keys does not matter.
func (a Attributes) Hash() string {
	h := sha256.New()
	for _, k := range a.Keys() {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(a[k]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Routes returns destination CIDR to target for every route.* attribute.
func (a Attributes) Routes() map[string]string {
	routes := make(map[string]string)
	for k, v := range a {
		if strings.HasPrefix(k, RoutePrefix) {
			routes[strings.TrimPrefix(k, RoutePrefix)] = v
		}
	}
	return routes
}

// Tags returns the tag.* attributes plus the Name tag.
func (a Attributes) Tags() map[string]string {
	tags := make(map[string]string)
	for k, v := range a {
		if strings.HasPrefix(k, TagPrefix) {
			tags[strings.TrimPrefix(k, TagPrefix)] = v
		}
	}
	if name, ok := a[AttrName]; ok {
		tags["Name"] = name
	}
	return tags
}

// Ref builds a reference to another node's provider id.
func Ref(logicalName string) string {
	return RefPrefix + logicalName
}

// RefTarget reports the logical name referenced by v, if any.
func RefTarget(v string) (string, bool) {
	if !strings.HasPrefix(v, RefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(v, RefPrefix), true
}

// ResourceNode is one planned infrastructure object.
type ResourceNode struct {
	LogicalName string
	Kind        ResourceKind
	Visibility  Visibility
	Attributes  Attributes
	DependsOn   []string
}

type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusCreated RecordStatus = "created"
	StatusFailed  RecordStatus = "failed"
)

// ResourceRecord is the persisted fact about a node.
type ResourceRecord struct {
	LogicalName    string       `json:"logical_name"`
	Kind           ResourceKind `json:"kind"`
	ProviderID     string       `json:"provider_id"`
	AttributesHash string       `json:"attributes_hash"`
	Attributes     Attributes   `json:"attributes,omitempty"`
	LastStatus     RecordStatus `json:"last_status"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
