// Package netform reconciles a declared VPC topology (one VPC, an internet
// gateway, public and private subnets per availability zone, and their
// route tables) against a cloud provider.
package netform

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eleven-am/netform/internal/analyzer"
	internalaws "github.com/eleven-am/netform/internal/aws"
	"github.com/eleven-am/netform/internal/graph"
	"github.com/eleven-am/netform/internal/reconciler"
	"github.com/eleven-am/netform/internal/state"
	"github.com/eleven-am/netform/internal/validate"
)

// Validate checks a topology without contacting any provider. Errors are
// *ValidationError.
func Validate(spec TopologySpec) error {
	return validate.Validate(spec)
}

// Build validates spec and expands it into its resource graph.
func Build(spec TopologySpec) (*Graph, error) {
	if err := validate.Validate(spec); err != nil {
		return nil, err
	}
	return graph.Build(spec), nil
}

// CheckIsolation traces the public and private subnets of spec through
// their route tables. Findings with Violation set break isolation.
func CheckIsolation(spec TopologySpec) ([]Finding, error) {
	g, err := Build(spec)
	if err != nil {
		return nil, err
	}
	return analyzer.CheckIsolation(g)
}

// RenderGraph writes the resource graph of spec as Graphviz or Mermaid.
func RenderGraph(spec TopologySpec, format GraphFormat, w io.Writer) error {
	g, err := Build(spec)
	if err != nil {
		return err
	}
	return graph.Renderer{Format: format}.Render(g, w)
}

// NewAWSProvider manages resources with EC2, assuming roleARN first when it
// is not empty.
func NewAWSProvider(cfg aws.Config, roleARN string) Provider {
	return internalaws.NewSessionProvider(internalaws.NewSession(cfg, roleARN))
}

func NewMemoryStore() StateStore {
	return state.NewMemoryStore()
}

// NewFileStore keeps the records of one topology in a JSON file.
func NewFileStore(path, topology string) StateStore {
	return state.NewFileStore(path, topology)
}

// NewS3Store keeps one object per record under bucket/prefix/topology/.
func NewS3Store(cfg aws.Config, bucket, prefix, topology string) StateStore {
	return state.NewS3Store(s3.NewFromConfig(cfg), bucket, prefix, topology)
}

// Engine applies, plans, destroys and checks drift of topologies.
type Engine struct {
	rec *reconciler.Reconciler
}

func New(provider Provider, store StateStore, opts Options) *Engine {
	return &Engine{rec: reconciler.New(provider, store, opts)}
}

// NewMetrics returns collectors to pass in Options and register with
// Metrics.MustRegister.
func NewMetrics() *Metrics {
	return reconciler.NewMetrics()
}

// Apply creates or updates every resource of spec. A validation failure
// returns before any provider call. The result is returned alongside a
// store error.
func (e *Engine) Apply(ctx context.Context, spec TopologySpec) (*ReconcileResult, error) {
	g, err := Build(spec)
	if err != nil {
		return nil, err
	}
	return e.rec.Apply(ctx, g)
}

// Plan reports what Apply would do without changing anything.
func (e *Engine) Plan(ctx context.Context, spec TopologySpec) (*ReconcileResult, error) {
	g, err := Build(spec)
	if err != nil {
		return nil, err
	}
	return e.rec.Plan(ctx, g)
}

// Destroy deletes every recorded resource of spec, dependents first.
func (e *Engine) Destroy(ctx context.Context, spec TopologySpec) (*ReconcileResult, error) {
	g, err := Build(spec)
	if err != nil {
		return nil, err
	}
	return e.rec.Destroy(ctx, g)
}

func (e *Engine) CheckDrift(ctx context.Context, spec TopologySpec) ([]DriftReport, error) {
	g, err := Build(spec)
	if err != nil {
		return nil, err
	}
	reports, err := e.rec.CheckDrift(ctx, g)
	if err != nil {
		return reports, fmt.Errorf("check drift: %w", err)
	}
	return reports, nil
}
