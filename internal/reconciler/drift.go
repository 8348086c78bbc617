package reconciler

import (
	"context"
	"errors"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

// CheckDrift describes every recorded resource and compares it with the
// attribute snapshot of its record. Reports follow topological order.
func (r *Reconciler) CheckDrift(ctx context.Context, g *graph.Graph) ([]domain.DriftReport, error) {
	start := r.opts.Now()
	order := g.TopologicalOrder()
	reports := make([]domain.DriftReport, len(order))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.opts.Concurrency)
	for i, name := range order {
		node, _ := g.Node(name)
		eg.Go(func() error {
			report, err := r.driftNode(ctx, node)
			reports[i] = report
			return err
		})
	}
	err := eg.Wait()

	r.metrics.observeDrift(reports)
	r.metrics.observeRun("drift", start)
	for _, rep := range reports {
		if rep.Status != domain.DriftInSync && rep.LogicalName != "" {
			r.log.Warn().Err(rep.Err).
				Str("node", rep.LogicalName).
				Str("provider_id", rep.ProviderID).
				Str("status", string(rep.Status)).
				Int("fields", len(rep.Fields)).
				Msg("drift detected")
		}
	}
	return reports, err
}

func (r *Reconciler) driftNode(ctx context.Context, node domain.ResourceNode) (domain.DriftReport, error) {
	report := domain.DriftReport{LogicalName: node.LogicalName, Kind: node.Kind}
	rec, found, err := r.get(ctx, node.LogicalName)
	if err != nil {
		return report, err
	}
	if !found || rec.ProviderID == "" {
		report.Status = domain.DriftNotRecorded
		return report, nil
	}
	report.ProviderID = rec.ProviderID

	var live domain.Attributes
	err = r.call(ctx, "describe", node.Kind, func(ctx context.Context) error {
		var err error
		live, err = r.provider.Describe(ctx, node.Kind, rec.ProviderID)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		report.Status = domain.DriftMissing
		return report, nil
	case err != nil:
		report.Status = domain.DriftError
		report.Err = err
		return report, nil
	}

	report.Fields = compareLive(rec.Attributes, live)
	report.Status = domain.DriftInSync
	if len(report.Fields) > 0 {
		report.Status = domain.DriftDrifted
	}
	return report, nil
}

// compareLive checks every recorded key, plus routes present only on the
// live resource. Extra live tags are ignored.
func compareLive(recorded, live domain.Attributes) []domain.FieldDrift {
	var fields []domain.FieldDrift
	for _, k := range recorded.Keys() {
		if live[k] != recorded[k] {
			fields = append(fields, domain.FieldDrift{Key: k, Recorded: recorded[k], Live: live[k]})
		}
	}
	for _, k := range live.Keys() {
		if !strings.HasPrefix(k, domain.RoutePrefix) {
			continue
		}
		if _, ok := recorded[k]; !ok {
			fields = append(fields, domain.FieldDrift{Key: k, Live: live[k]})
		}
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	return fields
}
