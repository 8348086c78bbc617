package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eleven-am/netform/internal/analyzer"
	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a topology file without contacting AWS",
		Long: `Validate checks that the topology lists one public and one private subnet
per availability zone, that every CIDR parses, lies inside the VPC CIDR and
overlaps no other subnet. Exits with status 3 on an invalid topology.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, spec, err := a.loadGraph()
			if err != nil {
				return err
			}
			if a.output == "json" {
				return writeJSON(a.out, map[string]any{
					"valid":    true,
					"topology": g.Topology,
					"nodes":    g.Len(),
					"zones":    len(spec.AvailabilityZones),
				})
			}
			fmt.Fprintf(a.out, "%s is valid: %d zones, %d resources\n", a.topologyPath, len(spec.AvailabilityZones), g.Len())
			return nil
		},
	}
}

func newGraphCmd(a *app) *cobra.Command {
	var (
		format    string
		withState bool
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the resource dependency graph",
		Long: `Render the topology's resources and their dependencies as Graphviz DOT or
Mermaid. With --state, nodes are coloured by their recorded status.

Examples:
    netform graph | dot -Tpng -o topology.png
    netform graph -f mermaid --state`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := a.loadGraph()
			if err != nil {
				return err
			}
			r := graph.Renderer{Format: graph.Format(format)}
			switch r.Format {
			case graph.FormatDOT, graph.FormatMermaid:
			default:
				return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", format)
			}
			if withState {
				records, err := a.records(cmd, g)
				if err != nil {
					return err
				}
				r.Outcomes = make(map[string]domain.Outcome, len(records))
				for _, rec := range records {
					r.Outcomes[rec.LogicalName] = recordOutcome(rec)
				}
			}
			return r.Render(g, a.out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVar(&withState, "state", false, "Colour nodes by recorded status")
	return cmd
}

func recordOutcome(rec domain.ResourceRecord) domain.Outcome {
	if rec.LastStatus == domain.StatusFailed {
		return domain.OutcomeFailed
	}
	return domain.OutcomeCreated
}

func (a *app) records(cmd *cobra.Command, g *graph.Graph) ([]domain.ResourceRecord, error) {
	store, closer, err := a.openStore(cmd.Context(), g.Topology)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return store.List(cmd.Context())
}

func newOutputsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "Print recorded resource ids",
		Long: `Outputs prints the VPC, internet gateway, subnet and route table ids from
recorded state, subnets in topology order. AWS is not contacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := a.loadGraph()
			if err != nil {
				return err
			}
			records, err := a.records(cmd, g)
			if err != nil {
				return err
			}
			return printOutputs(a.out, a.output, outputsFromRecords(g, records))
		},
	}
}

func outputsFromRecords(g *graph.Graph, records []domain.ResourceRecord) domain.Outputs {
	ids := make(map[string]string, len(records))
	for _, rec := range records {
		ids[rec.LogicalName] = rec.ProviderID
	}
	res := &domain.ReconcileResult{}
	for _, n := range g.Nodes() {
		res.Outcomes = append(res.Outcomes, domain.NodeOutcome{
			LogicalName: n.LogicalName,
			Kind:        n.Kind,
			Visibility:  n.Visibility,
			ProviderID:  ids[n.LogicalName],
		})
	}
	return res.Outputs()
}

func newCheckCmd(a *app) *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that private subnets cannot reach the internet",
		Long: `Check traces an internet address and a VPC address from every subnet
through its route table. Public subnets must reach the internet gateway,
private subnets must not, and every subnet must reach the VPC locally.

Without --live the topology file is checked. With --live, route tables and
associations are described from AWS using recorded ids. Exits with status 4
on a violation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, _, err := a.loadGraph()
			if err != nil {
				return err
			}
			network, err := analyzer.FromGraph(g)
			if live {
				var records []domain.ResourceRecord
				if records, err = a.records(cmd, g); err != nil {
					return err
				}
				provider, perr := a.provider(cmd.Context())
				if perr != nil {
					return perr
				}
				network, err = analyzer.FromLive(cmd.Context(), records, provider)
			}
			if err != nil {
				return err
			}
			findings, err := network.Check(analyzer.DefaultExternalProbe)
			if err != nil {
				return err
			}
			if err := printFindings(a.out, a.output, findings); err != nil {
				return err
			}
			if v := analyzer.Violations(findings); len(v) > 0 {
				return &exitError{code: 4, err: fmt.Errorf("isolation check failed: %d violations", len(v))}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Check live route tables instead of the topology file")
	return cmd
}
