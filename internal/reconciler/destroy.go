package reconciler

import (
	"context"
	"errors"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

// Destroy deletes every recorded resource of g, dependents first, and
// removes the record of each one deleted. A node whose dependents were not
// all removed is skipped.
func (r *Reconciler) Destroy(ctx context.Context, g *graph.Graph) (*domain.ReconcileResult, error) {
	rn := r.newRun("destroy")
	return r.execute(ctx, g, rn, true, r.destroyNode)
}

func (r *Reconciler) destroyNode(ctx context.Context, node domain.ResourceNode, _ map[string]domain.NodeOutcome) (domain.NodeOutcome, error) {
	out := newOutcome(node)
	rec, found, err := r.get(ctx, node.LogicalName)
	if err != nil {
		return failed(out, err), err
	}
	if !found {
		out.Outcome = domain.OutcomeUnchanged
		out.Reason = "NotRecorded"
		return out, nil
	}

	out.ProviderID = rec.ProviderID
	if rec.ProviderID != "" {
		err := r.call(ctx, "delete", node.Kind, func(ctx context.Context) error {
			return r.provider.Delete(ctx, node.Kind, rec.ProviderID)
		})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return failed(out, err), nil
		}
	}

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	if err := r.store.Delete(sctx, node.LogicalName); err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = domain.StoreError("delete", node.LogicalName, err)
		}
		return failed(out, err), err
	}
	out.Outcome = domain.OutcomeDeleted
	return out, nil
}
