package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/eleven-am/netform/internal/analyzer"
	"github.com/eleven-am/netform/internal/domain"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// summarize counts outcomes as "3 created, 9 unchanged".
func summarize(outcomes []domain.NodeOutcome) string {
	counts := make(map[domain.Outcome]int)
	for _, o := range outcomes {
		counts[o.Outcome]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", counts[domain.Outcome(k)], strings.ReplaceAll(k, "_", " ")))
	}
	return strings.Join(parts, ", ")
}

func printResult(w io.Writer, format string, res *domain.ReconcileResult) error {
	if format == "json" {
		return writeJSON(w, res)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NODE\tKIND\tOUTCOME\tPROVIDER ID\tDETAIL")
	for _, o := range res.Outcomes {
		detail := o.Reason
		if len(o.ChangedFields) > 0 {
			detail = strings.Join(o.ChangedFields, ",")
			if o.Reason != "" {
				detail = o.Reason + ": " + detail
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.LogicalName, o.Kind, o.Outcome, dash(o.ProviderID), dash(detail))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "WARNING %s: %s %s (%s): %s\n", warn.Kind, warn.ResourceKind, warn.LogicalName, warn.ProviderID, warn.Message)
	}
	fmt.Fprintf(w, "\nRun %s: %s\n", res.RunID, summarize(res.Outcomes))
	return nil
}

func printDrift(w io.Writer, format string, reports []domain.DriftReport) error {
	if format == "json" {
		return writeJSON(w, reports)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NODE\tKIND\tSTATUS\tPROVIDER ID\tFIELD\tRECORDED\tLIVE")
	for _, r := range reports {
		if len(r.Fields) == 0 {
			detail := "-"
			if r.Err != nil {
				detail = r.Err.Error()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t-\t-\n", r.LogicalName, r.Kind, r.Status, dash(r.ProviderID), detail)
			continue
		}
		for _, f := range r.Fields {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.LogicalName, r.Kind, r.Status, dash(r.ProviderID), f.Key, dash(f.Recorded), dash(f.Live))
		}
	}
	return tw.Flush()
}

func printFindings(w io.Writer, format string, findings []analyzer.Finding) error {
	if format == "json" {
		return writeJSON(w, findings)
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "SUBNET\tPROBE\tEXPECTED\tACTUAL\tPATH")
	for _, f := range findings {
		status := f.Actual
		if f.Violation {
			status += " (VIOLATION)"
		}
		path := f.Trace.String()
		if reason := f.Trace.BlockingReason(); reason != "" {
			path += " [" + reason + "]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.Subnet, f.Probe, f.Expected, status, path)
	}
	return tw.Flush()
}

func printOutputs(w io.Writer, format string, out domain.Outputs) error {
	if format == "json" {
		return writeJSON(w, out)
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "vpc_id\t%s\n", dash(out.VPCID))
	fmt.Fprintf(tw, "internet_gateway_id\t%s\n", dash(out.InternetGatewayID))
	fmt.Fprintf(tw, "public_subnet_ids\t%s\n", dash(strings.Join(out.PublicSubnetIDs, ",")))
	fmt.Fprintf(tw, "private_subnet_ids\t%s\n", dash(strings.Join(out.PrivateSubnetIDs, ",")))
	fmt.Fprintf(tw, "public_route_table_id\t%s\n", dash(out.PublicRouteTableID))
	fmt.Fprintf(tw, "private_route_table_id\t%s\n", dash(out.PrivateRouteTableID))
	return tw.Flush()
}
