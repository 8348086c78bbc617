// Package fake provides an in-memory domain.Provider for tests and for
// exercising the reconciler without cloud credentials.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eleven-am/netform/internal/domain"
)

// Call records one provider invocation.
type Call struct {
	Op          string
	Kind        domain.ResourceKind
	LogicalName string
	ProviderID  string
}

// Hook runs before an operation and may replace its result with an error.
// It receives the context the reconciler passed to the call.
type Hook func(ctx context.Context, logicalName string) error

type resource struct {
	kind        domain.ResourceKind
	logicalName string
	attrs       domain.Attributes
}

// Provider is safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	seq       int
	resources map[string]*resource
	calls     []Call
	hooks     map[string]Hook
}

func NewProvider() *Provider {
	return &Provider{
		resources: make(map[string]*resource),
		hooks:     make(map[string]Hook),
	}
}

func hookKey(op, logicalName string) string {
	return op + "/" + logicalName
}

// On installs hook for op ("Create", "Update", "Describe", "Delete",
// "Lookup") on the node with logicalName. An empty name matches every node.
func (p *Provider) On(op, logicalName string, hook Hook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks[hookKey(op, logicalName)] = hook
}

// FailOn makes op on logicalName return err.
func (p *Provider) FailOn(op, logicalName string, err error) {
	p.On(op, logicalName, func(context.Context, string) error { return err })
}

// Clear removes every hook.
func (p *Provider) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = make(map[string]Hook)
}

func (p *Provider) runHook(ctx context.Context, op, logicalName string) error {
	p.mu.Lock()
	hook, ok := p.hooks[hookKey(op, logicalName)]
	if !ok {
		hook, ok = p.hooks[hookKey(op, "")]
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return hook(ctx, logicalName)
}

func (p *Provider) record(c Call) {
	p.mu.Lock()
	p.calls = append(p.calls, c)
	p.mu.Unlock()
}

func (p *Provider) nameOf(providerID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resources[providerID]; ok {
		return r.logicalName
	}
	return ""
}

func prefix(kind domain.ResourceKind) string {
	switch kind {
	case domain.KindVPC:
		return "vpc"
	case domain.KindInternetGateway:
		return "igw"
	case domain.KindSubnet:
		return "subnet"
	case domain.KindRouteTable:
		return "rtb"
	case domain.KindRouteTableAssociation:
		return "rtbassoc"
	}
	return "res"
}

func notFound(kind domain.ResourceKind, id string) error {
	return &domain.ProviderError{Code: "NotFound", Err: fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)}
}

func (p *Provider) Create(ctx context.Context, node domain.ResourceNode, attrs domain.Attributes) (string, error) {
	p.record(Call{Op: "Create", Kind: node.Kind, LogicalName: node.LogicalName})
	if err := p.runHook(ctx, "Create", node.LogicalName); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("%s-%04d", prefix(node.Kind), p.seq)
	p.resources[id] = &resource{kind: node.Kind, logicalName: node.LogicalName, attrs: attrs.Clone()}
	return id, nil
}

func (p *Provider) Update(ctx context.Context, kind domain.ResourceKind, providerID string, attrs domain.Attributes) error {
	name := p.nameOf(providerID)
	p.record(Call{Op: "Update", Kind: kind, LogicalName: name, ProviderID: providerID})
	if err := p.runHook(ctx, "Update", name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[providerID]
	if !ok {
		return notFound(kind, providerID)
	}
	r.attrs = attrs.Clone()
	return nil
}

func (p *Provider) Describe(ctx context.Context, kind domain.ResourceKind, providerID string) (domain.Attributes, error) {
	name := p.nameOf(providerID)
	p.record(Call{Op: "Describe", Kind: kind, LogicalName: name, ProviderID: providerID})
	if err := p.runHook(ctx, "Describe", name); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[providerID]
	if !ok {
		return nil, notFound(kind, providerID)
	}
	return r.attrs.Clone(), nil
}

func (p *Provider) Delete(ctx context.Context, kind domain.ResourceKind, providerID string) error {
	name := p.nameOf(providerID)
	p.record(Call{Op: "Delete", Kind: kind, LogicalName: name, ProviderID: providerID})
	if err := p.runHook(ctx, "Delete", name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.resources[providerID]; !ok {
		return notFound(kind, providerID)
	}
	delete(p.resources, providerID)
	return nil
}

// Lookup matches on the name attribute or, for associations, on the
// subnet and route table pair.
func (p *Provider) Lookup(ctx context.Context, node domain.ResourceNode, attrs domain.Attributes) (string, error) {
	p.record(Call{Op: "Lookup", Kind: node.Kind, LogicalName: node.LogicalName})
	if err := p.runHook(ctx, "Lookup", node.LogicalName); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.ids() {
		r := p.resources[id]
		if r.kind != node.Kind {
			continue
		}
		if node.Kind == domain.KindRouteTableAssociation {
			if r.attrs[domain.AttrSubnet] == attrs[domain.AttrSubnet] &&
				r.attrs[domain.AttrRouteTable] == attrs[domain.AttrRouteTable] {
				return id, nil
			}
			continue
		}
		if name := attrs[domain.AttrName]; name != "" && r.attrs[domain.AttrName] == name {
			return id, nil
		}
	}
	return "", notFound(node.Kind, node.LogicalName)
}

func (p *Provider) ids() []string {
	ids := make([]string, 0, len(p.resources))
	for id := range p.resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Calls returns a copy of every recorded call, optionally filtered by op.
func (p *Provider) Calls(ops ...string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.calls {
		if len(ops) == 0 {
			out = append(out, c)
			continue
		}
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// ResetCalls forgets recorded calls.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	p.calls = nil
	p.mu.Unlock()
}

// Resources returns live resource ids keyed by logical name.
func (p *Provider) Resources() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.resources))
	for id, r := range p.resources {
		out[r.logicalName] = id
	}
	return out
}

// Inject adds a resource created outside the reconciler, as if a previous
// run had created it and then lost its record.
func (p *Provider) Inject(kind domain.ResourceKind, logicalName string, attrs domain.Attributes) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("%s-%04d", prefix(kind), p.seq)
	p.resources[id] = &resource{kind: kind, logicalName: logicalName, attrs: attrs.Clone()}
	return id
}

// Mutate changes a live resource behind the reconciler's back.
func (p *Provider) Mutate(providerID string, fn func(domain.Attributes)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.resources[providerID]; ok {
		fn(r.attrs)
	}
}

var _ domain.Provider = (*Provider)(nil)
