package reconciler

import (
	"context"
	"fmt"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

// knownAfterApply stands in for provider ids of nodes that would be created.
const knownAfterApply = "(known after apply)"

// Plan reports what Apply would do without calling the provider or writing
// records.
func (r *Reconciler) Plan(ctx context.Context, g *graph.Graph) (*domain.ReconcileResult, error) {
	rn := r.newRun("plan")
	return r.execute(ctx, g, rn, false, r.planNode)
}

func (r *Reconciler) planNode(ctx context.Context, node domain.ResourceNode, prereqs map[string]domain.NodeOutcome) (domain.NodeOutcome, error) {
	out := newOutcome(node)
	attrs, err := resolve(node, prereqs, knownAfterApply)
	if err != nil {
		return failed(out, err), nil
	}

	rec, found, err := r.get(ctx, node.LogicalName)
	if err != nil {
		return failed(out, err), err
	}
	if !found || rec.ProviderID == "" {
		out.Outcome = domain.OutcomeWouldCreate
		return out, nil
	}

	out.ProviderID = rec.ProviderID
	if rec.AttributesHash == attrs.Hash() && rec.LastStatus == domain.StatusCreated {
		out.Outcome = domain.OutcomeUnchanged
		return out, nil
	}

	changed := changedKeys(rec.Attributes, attrs)
	if rec.Attributes == nil {
		changed = attrs.Keys()
	}
	if repl := replacementFields(changed); len(repl) > 0 {
		out.Outcome = domain.OutcomeRequiresReplacement
		out.ChangedFields = repl
		out.Reason = "RequiresReplacement"
		out.Err = fmt.Errorf("%s: %w: %v", node.LogicalName, domain.ErrRequiresReplacement, repl)
		return out, nil
	}
	out.Outcome = domain.OutcomeWouldUpdate
	out.ChangedFields = changed
	return out, nil
}
