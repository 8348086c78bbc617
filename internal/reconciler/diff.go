package reconciler

import (
	"fmt"
	"sort"

	"github.com/eleven-am/netform/internal/domain"
)

// replacementKeys cannot change on a live resource.
var replacementKeys = map[string]struct{}{
	domain.AttrCIDRBlock:        {},
	domain.AttrAvailabilityZone: {},
	domain.AttrVPC:              {},
	domain.AttrSubnet:           {},
	domain.AttrRouteTable:       {},
}

func requiresReplacement(key string) bool {
	_, ok := replacementKeys[key]
	return ok
}

// changedKeys lists keys whose value differs between the recorded snapshot
// and the desired attributes, including keys present on one side only.
func changedKeys(recorded, desired domain.Attributes) []string {
	seen := make(map[string]struct{})
	var keys []string
	for k, v := range desired {
		if recorded[k] != v || !hasKey(recorded, k) {
			keys = append(keys, k)
		}
		seen[k] = struct{}{}
	}
	for k := range recorded {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func hasKey(a domain.Attributes, k string) bool {
	_, ok := a[k]
	return ok
}

func replacementFields(keys []string) []string {
	var out []string
	for _, k := range keys {
		if requiresReplacement(k) {
			out = append(out, k)
		}
	}
	return out
}

// resolve replaces every ref: value with the provider id of the referenced
// prerequisite. placeholder stands in for ids not known yet.
func resolve(node domain.ResourceNode, prereqs map[string]domain.NodeOutcome, placeholder string) (domain.Attributes, error) {
	attrs := node.Attributes.Clone()
	for k, v := range attrs {
		target, ok := domain.RefTarget(v)
		if !ok {
			continue
		}
		dep, ok := prereqs[target]
		if !ok {
			return nil, fmt.Errorf("%s: attribute %s references %s which is not a dependency", node.LogicalName, k, target)
		}
		switch {
		case dep.ProviderID != "":
			attrs[k] = dep.ProviderID
		case placeholder != "":
			attrs[k] = placeholder
		default:
			return nil, fmt.Errorf("%s: attribute %s references %s which has no provider id", node.LogicalName, k, target)
		}
	}
	return attrs, nil
}
