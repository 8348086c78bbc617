package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/netform/internal/analyzer"
	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
	"github.com/eleven-am/netform/internal/reconciler"
)

func newPlanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change",
		Long: `Plan compares the topology with recorded state and reports, per resource,
whether apply would create, update or leave it alone. Nothing is changed.

Ids of resources that do not exist yet are shown as "(known after apply)".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reconcile(cmd, func(ctx context.Context, r *reconciler.Reconciler, g *graph.Graph) error {
				res, err := r.Plan(ctx, g)
				if res != nil {
					if perr := printResult(a.out, a.output, res); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func newApplyCmd(a *app) *cobra.Command {
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the topology",
		Long: `Apply creates missing resources, adopts existing ones carrying the expected
Name tag, and updates tags and routes in place. Changes to a CIDR block,
availability zone or association target are reported as requiring
replacement and never applied.

A failed resource only stops the resources that depend on it. Apply exits
with status 2 when any resource failed or was skipped; run it again to
retry.

Examples:
    netform apply -t topology.yaml
    netform apply -t topology.yaml --state-backend s3 --state-bucket my-state`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reconcile(cmd, func(ctx context.Context, r *reconciler.Reconciler, g *graph.Graph) error {
				if !skipCheck {
					if err := a.preflight(g); err != nil {
						return err
					}
				}
				res, err := r.Apply(ctx, g)
				return a.finish(res, err, "apply")
			})
		},
	}
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Do not run the isolation check first")
	return cmd
}

func newDestroyCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Delete every recorded resource",
		Long: `Destroy deletes recorded resources in reverse dependency order and removes
their records. Resources that are already gone count as deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("destroy deletes cloud resources; pass --yes to confirm")
			}
			return a.reconcile(cmd, func(ctx context.Context, r *reconciler.Reconciler, g *graph.Graph) error {
				res, err := r.Destroy(ctx, g)
				return a.finish(res, err, "destroy")
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func newDriftCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Compare recorded resources with their live state",
		Long: `Drift describes every recorded resource and reports attributes whose live
value differs from the record, and resources that no longer exist.
Exits with status 2 when anything drifted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.reconcile(cmd, func(ctx context.Context, r *reconciler.Reconciler, g *graph.Graph) error {
				reports, err := r.CheckDrift(ctx, g)
				if err != nil {
					return err
				}
				if err := printDrift(a.out, a.output, reports); err != nil {
					return err
				}
				for _, rep := range reports {
					if rep.Status != domain.DriftInSync && rep.Status != domain.DriftNotRecorded {
						return &exitError{code: 2, err: errors.New("drift detected")}
					}
				}
				return nil
			})
		},
	}
}

// preflight refuses to apply a topology whose private subnets would reach
// the internet.
func (a *app) preflight(g *graph.Graph) error {
	findings, err := analyzer.CheckIsolation(g)
	if err != nil {
		return err
	}
	if v := analyzer.Violations(findings); len(v) > 0 {
		for _, f := range v {
			a.log.Error().Str("subnet", f.Subnet).Str("probe", f.Probe).Str("expected", f.Expected).Str("actual", f.Actual).Msg("isolation violation")
		}
		return &exitError{code: 4, err: fmt.Errorf("isolation check failed: %d violations", len(v))}
	}
	return nil
}

func (a *app) finish(res *domain.ReconcileResult, err error, operation string) error {
	if res != nil {
		if perr := printResult(a.out, a.output, res); perr != nil {
			return perr
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if !res.Successful() {
		return &exitError{code: 2, err: fmt.Errorf("%s incomplete: %d failed, %d skipped", operation, len(res.Failed()), len(res.Skipped()))}
	}
	return nil
}
