package domain

import "strings"

type HopAction string

const (
	HopActionEntered  HopAction = "entered"
	HopActionRouted   HopAction = "routed"
	HopActionBlocked  HopAction = "blocked"
	HopActionTerminal HopAction = "terminal"
)

// Hop is one step of a traced packet through the topology.
type Hop struct {
	LogicalName string       `json:"logical_name,omitempty"`
	ProviderID  string       `json:"provider_id,omitempty"`
	Kind        ResourceKind `json:"kind,omitempty"`
	Action      HopAction    `json:"action"`
	Details     string       `json:"details,omitempty"`
}

type PathTrace struct {
	Destination string `json:"destination"`
	Hops        []*Hop `json:"hops"`
	Success     bool   `json:"success"`
	BlockedAt   *Hop   `json:"blocked_at,omitempty"`
}

func NewPathTrace(destination string) *PathTrace {
	return &PathTrace{Destination: destination, Hops: make([]*Hop, 0, 4)}
}

func (p *PathTrace) AddHop(hop *Hop) *PathTrace {
	p.Hops = append(p.Hops, hop)
	return p
}

func (p *PathTrace) LastHop() *Hop {
	if len(p.Hops) == 0 {
		return nil
	}
	return p.Hops[len(p.Hops)-1]
}

// MarkBlocked turns the last hop into the blocking hop.
func (p *PathTrace) MarkBlocked(reason string) *PathTrace {
	if last := p.LastHop(); last != nil {
		last.Action = HopActionBlocked
		last.Details = reason
		p.BlockedAt = last
	}
	p.Success = false
	return p
}

func (p *PathTrace) MarkSuccess() *PathTrace {
	p.Success = true
	p.BlockedAt = nil
	return p
}

// Terminal returns the details of the final terminal hop, such as "local"
// or "internet", or "" when the trace was blocked.
func (p *PathTrace) Terminal() string {
	if last := p.LastHop(); last != nil && last.Action == HopActionTerminal {
		return last.Details
	}
	return ""
}

func (p *PathTrace) BlockingReason() string {
	if p.Success || p.BlockedAt == nil {
		return ""
	}
	return "blocked at " + string(p.BlockedAt.Kind) + " " + p.BlockedAt.LogicalName + ": " + p.BlockedAt.Details
}

// String renders the hops as "public-subnet-0 -> public-route-table -> internet".
func (p *PathTrace) String() string {
	parts := make([]string, 0, len(p.Hops))
	for _, h := range p.Hops {
		name := h.LogicalName
		if name == "" {
			name = h.Details
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " -> ")
}
