// Command netform reconciles a VPC topology file against AWS.
//
// Usage:
//
//	netform validate -t topology.yaml   Check a topology without AWS access
//	netform plan -t topology.yaml       Show what apply would change
//	netform apply -t topology.yaml      Create or update the topology
//	netform destroy -t topology.yaml    Delete every recorded resource
//	netform drift -t topology.yaml      Compare records with live resources
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// exitError carries a process exit code other than 1.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "netform",
		Short: "Reconcile a VPC topology against AWS",
		Long: `netform turns a short topology description into a VPC, an internet gateway,
public and private subnets per availability zone, and their route tables.

Topology file:

    vpc_cidr: 10.0.0.0/16
    availability_zones: [us-east-1a, us-east-1b]
    public_subnet_cidrs: [10.0.1.0/24, 10.0.2.0/24]
    private_subnet_cidrs: [10.0.11.0/24, 10.0.12.0/24]

Settings come from --config, then NETFORM_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	a.bindFlags(rootCmd)

	rootCmd.AddCommand(
		newValidateCmd(a),
		newPlanCmd(a),
		newApplyCmd(a),
		newDestroyCmd(a),
		newDriftCmd(a),
		newGraphCmd(a),
		newOutputsCmd(a),
		newCheckCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}
