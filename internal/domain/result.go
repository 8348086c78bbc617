package domain

import (
	"sort"
	"strings"
	"time"
)

type Outcome string

const (
	OutcomeCreated             Outcome = "created"
	OutcomeAdopted             Outcome = "adopted"
	OutcomeUpdated             Outcome = "updated"
	OutcomeUnchanged           Outcome = "unchanged"
	OutcomeFailed              Outcome = "failed"
	OutcomeSkipped             Outcome = "skipped"
	OutcomeRequiresReplacement Outcome = "requires_replacement"
	OutcomeDeleted             Outcome = "deleted"

	OutcomeWouldCreate Outcome = "would_create"
	OutcomeWouldUpdate Outcome = "would_update"
	OutcomeWouldDelete Outcome = "would_delete"
)

// Reached reports whether dependents of a node with this outcome may proceed.
func (o Outcome) Reached() bool {
	switch o {
	case OutcomeCreated, OutcomeAdopted, OutcomeUpdated, OutcomeUnchanged, OutcomeDeleted,
		OutcomeWouldCreate, OutcomeWouldUpdate, OutcomeWouldDelete:
		return true
	}
	return false
}

// NodeOutcome is the final status of one node in a run.
type NodeOutcome struct {
	LogicalName   string       `json:"logical_name"`
	Kind          ResourceKind `json:"kind"`
	Visibility    Visibility   `json:"visibility,omitempty"`
	Outcome       Outcome      `json:"outcome"`
	ProviderID    string       `json:"provider_id,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Retryable     bool         `json:"retryable,omitempty"`
	ChangedFields []string     `json:"changed_fields,omitempty"`
	Err           error        `json:"-"`
}

type WarningKind string

const WarningDanglingResource WarningKind = "DanglingResource"

// Warning flags something an operator has to reconcile by hand.
type Warning struct {
	Kind         WarningKind  `json:"kind"`
	LogicalName  string       `json:"logical_name"`
	ResourceKind ResourceKind `json:"resource_kind"`
	ProviderID   string       `json:"provider_id"`
	Message      string       `json:"message"`
}

// ReconcileResult aggregates every node outcome of one run.
type ReconcileResult struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Outcomes   []NodeOutcome `json:"outcomes"`
	Warnings   []Warning     `json:"warnings,omitempty"`
}

func (r *ReconcileResult) filter(outcomes ...Outcome) []NodeOutcome {
	var out []NodeOutcome
	for _, o := range r.Outcomes {
		for _, want := range outcomes {
			if o.Outcome == want {
				out = append(out, o)
				break
			}
		}
	}
	return out
}

func (r *ReconcileResult) Created() []NodeOutcome {
	return r.filter(OutcomeCreated, OutcomeAdopted)
}

func (r *ReconcileResult) Updated() []NodeOutcome {
	return r.filter(OutcomeUpdated)
}

func (r *ReconcileResult) Unchanged() []NodeOutcome {
	return r.filter(OutcomeUnchanged)
}

func (r *ReconcileResult) Failed() []NodeOutcome {
	return r.filter(OutcomeFailed, OutcomeRequiresReplacement)
}

func (r *ReconcileResult) Skipped() []NodeOutcome {
	return r.filter(OutcomeSkipped)
}

// Successful is true when no node failed, was skipped or needs replacement.
func (r *ReconcileResult) Successful() bool {
	return len(r.Failed()) == 0 && len(r.Skipped()) == 0
}

func (r *ReconcileResult) Outcome(logicalName string) (NodeOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.LogicalName == logicalName {
			return o, true
		}
	}
	return NodeOutcome{}, false
}

// Sort orders outcomes by logical name.
func (r *ReconcileResult) Sort() {
	sort.Slice(r.Outcomes, func(i, j int) bool {
		return r.Outcomes[i].LogicalName < r.Outcomes[j].LogicalName
	})
}

// Outputs mirrors the variables a declarative configuration would export.
type Outputs struct {
	VPCID               string            `json:"vpc_id,omitempty"`
	InternetGatewayID   string            `json:"internet_gateway_id,omitempty"`
	PublicSubnetIDs     []string          `json:"public_subnet_ids,omitempty"`
	PrivateSubnetIDs    []string          `json:"private_subnet_ids,omitempty"`
	PublicRouteTableID  string            `json:"public_route_table_id,omitempty"`
	PrivateRouteTableID string            `json:"private_route_table_id,omitempty"`
	ByLogicalName       map[string]string `json:"by_logical_name"`
}

// Outputs derives provider ids per kind. Subnet ids keep spec order.
func (r *ReconcileResult) Outputs() Outputs {
	out := Outputs{ByLogicalName: make(map[string]string)}
	var public, private []NodeOutcome
	for _, o := range r.Outcomes {
		if o.ProviderID == "" {
			continue
		}
		out.ByLogicalName[o.LogicalName] = o.ProviderID
		switch o.Kind {
		case KindVPC:
			out.VPCID = o.ProviderID
		case KindInternetGateway:
			out.InternetGatewayID = o.ProviderID
		case KindSubnet:
			if o.Visibility == VisibilityPublic {
				public = append(public, o)
			} else {
				private = append(private, o)
			}
		case KindRouteTable:
			if o.Visibility == VisibilityPublic {
				out.PublicRouteTableID = o.ProviderID
			} else {
				out.PrivateRouteTableID = o.ProviderID
			}
		}
	}
	out.PublicSubnetIDs = orderedIDs(public)
	out.PrivateSubnetIDs = orderedIDs(private)
	return out
}

func orderedIDs(outcomes []NodeOutcome) []string {
	sort.Slice(outcomes, func(i, j int) bool {
		return subnetIndexLess(outcomes[i].LogicalName, outcomes[j].LogicalName)
	})
	ids := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		ids = append(ids, o.ProviderID)
	}
	return ids
}

// subnetIndexLess compares "public-subnet-2" before "public-subnet-10".
func subnetIndexLess(a, b string) bool {
	ai, bi := a[strings.LastIndex(a, "-")+1:], b[strings.LastIndex(b, "-")+1:]
	if len(ai) != len(bi) {
		return len(ai) < len(bi)
	}
	return ai < bi
}
