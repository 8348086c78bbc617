// Package reconciler drives a resource graph to its desired state through a
// provider, recording every outcome in a state store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

const (
	DefaultConcurrency = 4
	DefaultCallTimeout = 2 * time.Minute
)

type Options struct {
	// Concurrency bounds the nodes in flight at once.
	Concurrency int
	// CallTimeout bounds every provider call. A timeout is an ordinary
	// node failure.
	CallTimeout time.Duration
	// RateLimit caps provider calls per second across all workers. Zero
	// disables limiting.
	RateLimit float64
	Burst     int
	Logger    zerolog.Logger
	// Metrics defaults to an unregistered set.
	Metrics *Metrics
	Now     func() time.Time
}

type Reconciler struct {
	provider domain.Provider
	store    domain.StateStore
	opts     Options
	limiter  *rate.Limiter
	log      zerolog.Logger
	metrics  *Metrics
}

func New(provider domain.Provider, store domain.StateStore, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return &Reconciler{
		provider: provider,
		store:    store,
		opts:     opts,
		limiter:  limiter,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// run tracks the mutable state of one Apply, Plan or Destroy.
type run struct {
	id        string
	operation string

	mu       sync.Mutex
	warnings []domain.Warning
}

func (rn *run) warn(w domain.Warning) {
	rn.mu.Lock()
	rn.warnings = append(rn.warnings, w)
	rn.mu.Unlock()
}

func (r *Reconciler) newRun(operation string) *run {
	return &run{id: uuid.NewString(), operation: operation}
}

// call runs one provider operation detached from cancellation of ctx and
// bounded by the call timeout, so a started call always completes.
func (r *Reconciler) call(ctx context.Context, name string, kind domain.ResourceKind, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CallTimeout)
	defer cancel()
	if err := r.limiter.Wait(callCtx); err != nil {
		return providerError(err)
	}
	start := time.Now()
	err := fn(callCtx)
	r.metrics.observeCall(name, kind, start, err)
	return providerError(err)
}

// providerError wraps anything that is not already a ProviderError.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &domain.ProviderError{Code: "Timeout", Retryable: true, Err: err}
	}
	return &domain.ProviderError{Code: "ProviderError", Err: err}
}

// storeCtx detaches store access from cancellation; records of started
// nodes are always written.
func (r *Reconciler) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.opts.CallTimeout)
}

func (r *Reconciler) get(ctx context.Context, name string) (domain.ResourceRecord, bool, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	rec, err := r.store.Get(sctx, name)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return domain.ResourceRecord{}, false, nil
	case errors.Is(err, domain.ErrStoreUnavailable):
		return domain.ResourceRecord{}, false, err
	}
	return domain.ResourceRecord{}, false, domain.StoreError("get", name, err)
}

func (r *Reconciler) put(ctx context.Context, rec domain.ResourceRecord) error {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	rec.UpdatedAt = r.opts.Now().UTC()
	if err := r.store.Put(sctx, rec); err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
		return domain.StoreError("put", rec.LogicalName, err)
	}
	return nil
}

func newOutcome(node domain.ResourceNode) domain.NodeOutcome {
	return domain.NodeOutcome{
		LogicalName: node.LogicalName,
		Kind:        node.Kind,
		Visibility:  node.Visibility,
	}
}

func failed(o domain.NodeOutcome, err error) domain.NodeOutcome {
	o.Outcome = domain.OutcomeFailed
	o.Err = err
	o.Reason = err.Error()
	o.Retryable = domain.IsRetryable(err)
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		o.Reason = perr.Code
	}
	return o
}

// Apply drives every node of g to its desired attributes. The result is
// returned even when err is non-nil; err matches ErrStoreUnavailable when a
// record could not be read or written, which stops the run.
func (r *Reconciler) Apply(ctx context.Context, g *graph.Graph) (*domain.ReconcileResult, error) {
	rn := r.newRun("apply")
	return r.execute(ctx, g, rn, false, r.applyNode(rn))
}

func (r *Reconciler) execute(ctx context.Context, g *graph.Graph, rn *run, reverse bool, visit visitFunc) (*domain.ReconcileResult, error) {
	start := r.opts.Now()
	log := r.log.With().Str("run_id", rn.id).Str("operation", rn.operation).Logger()
	log.Info().Str("topology", g.Topology).Int("nodes", g.Len()).Msg("run started")

	w := &walker{graph: g, concurrency: r.opts.Concurrency, reverse: reverse}
	outcomes, err := w.walk(ctx, func(ctx context.Context, node domain.ResourceNode, prereqs map[string]domain.NodeOutcome) (domain.NodeOutcome, error) {
		o, err := visit(ctx, node, prereqs)
		r.logOutcome(log, o)
		return o, err
	})

	result := &domain.ReconcileResult{
		RunID:      rn.id,
		StartedAt:  start,
		FinishedAt: r.opts.Now(),
		Warnings:   rn.warnings,
	}
	for _, name := range g.TopologicalOrder() {
		o := outcomes[name]
		if o.Outcome == domain.OutcomeSkipped {
			r.logOutcome(log, o)
		}
		r.metrics.observeOutcome(rn.operation, o)
		result.Outcomes = append(result.Outcomes, o)
	}
	sort.SliceStable(result.Warnings, func(i, j int) bool {
		return result.Warnings[i].LogicalName < result.Warnings[j].LogicalName
	})
	r.metrics.observeRun(rn.operation, start)

	level := zerolog.InfoLevel
	if err != nil {
		level = zerolog.ErrorLevel
	}
	log.WithLevel(level).Err(err).
		Int("failed", len(result.Failed())).
		Int("skipped", len(result.Skipped())).
		Int("warnings", len(result.Warnings)).
		Msg("run finished")
	return result, err
}

func (r *Reconciler) logOutcome(log zerolog.Logger, o domain.NodeOutcome) {
	level := zerolog.InfoLevel
	switch o.Outcome {
	case domain.OutcomeFailed, domain.OutcomeRequiresReplacement:
		level = zerolog.WarnLevel
	case domain.OutcomeSkipped:
		level = zerolog.DebugLevel
	}
	log.WithLevel(level).Err(o.Err).
		Str("node", o.LogicalName).
		Str("kind", string(o.Kind)).
		Str("outcome", string(o.Outcome)).
		Str("provider_id", o.ProviderID).
		Str("reason", o.Reason).
		Strs("changed_fields", o.ChangedFields).
		Msg("node reconciled")
}

func (r *Reconciler) applyNode(rn *run) visitFunc {
	return func(ctx context.Context, node domain.ResourceNode, prereqs map[string]domain.NodeOutcome) (domain.NodeOutcome, error) {
		out := newOutcome(node)
		attrs, err := resolve(node, prereqs, "")
		if err != nil {
			return failed(out, err), nil
		}
		hash := attrs.Hash()

		rec, found, err := r.get(ctx, node.LogicalName)
		if err != nil {
			return failed(out, err), err
		}

		if !found || rec.ProviderID == "" {
			return r.createNode(ctx, rn, node, attrs, hash)
		}

		out.ProviderID = rec.ProviderID
		if rec.AttributesHash == hash && rec.LastStatus == domain.StatusCreated {
			out.Outcome = domain.OutcomeUnchanged
			return out, nil
		}

		changed := changedKeys(rec.Attributes, attrs)
		if rec.Attributes == nil {
			changed = attrs.Keys()
		}
		if repl := replacementFields(changed); len(repl) > 0 {
			return needsReplacement(out, repl), nil
		}
		out.ChangedFields = changed

		if ctx.Err() != nil {
			return skipped(node, reasonCancelled, domain.ErrCancelled), nil
		}
		err = r.call(ctx, "update", node.Kind, func(ctx context.Context) error {
			return r.provider.Update(ctx, node.Kind, rec.ProviderID, attrs)
		})
		if err != nil {
			rec.LastStatus = domain.StatusFailed
			if perr := r.put(ctx, rec); perr != nil {
				return failed(out, err), perr
			}
			return failed(out, err), nil
		}

		if err := r.put(ctx, domain.ResourceRecord{
			LogicalName:    node.LogicalName,
			Kind:           node.Kind,
			ProviderID:     rec.ProviderID,
			AttributesHash: hash,
			Attributes:     attrs,
			LastStatus:     domain.StatusCreated,
		}); err != nil {
			return failed(out, err), err
		}
		out.Outcome = domain.OutcomeUpdated
		return out, nil
	}
}

func needsReplacement(out domain.NodeOutcome, fields []string) domain.NodeOutcome {
	out.Outcome = domain.OutcomeRequiresReplacement
	out.ChangedFields = fields
	out.Err = fmt.Errorf("%s: %w: %v", out.LogicalName, domain.ErrRequiresReplacement, fields)
	out.Reason = "RequiresReplacement"
	return out
}

func (r *Reconciler) warnDangling(rn *run, node domain.ResourceNode, id, msg string) {
	rn.warn(domain.Warning{
		Kind:         domain.WarningDanglingResource,
		LogicalName:  node.LogicalName,
		ResourceKind: node.Kind,
		ProviderID:   id,
		Message:      msg,
	})
	r.metrics.danglingTotal.Inc()
}

// createNode adopts an existing resource carrying the node's identity, or
// creates a new one.
func (r *Reconciler) createNode(ctx context.Context, rn *run, node domain.ResourceNode, attrs domain.Attributes, hash string) (domain.NodeOutcome, error) {
	out := newOutcome(node)
	rec := domain.ResourceRecord{
		LogicalName:    node.LogicalName,
		Kind:           node.Kind,
		AttributesHash: hash,
		Attributes:     attrs,
	}

	var id string
	err := r.call(ctx, "lookup", node.Kind, func(ctx context.Context) error {
		var err error
		id, err = r.provider.Lookup(ctx, node, attrs)
		return err
	})
	switch {
	case err == nil && id != "":
		return r.adoptNode(ctx, node, rec, id)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return r.recordFailure(ctx, out, rec, err)
	}

	if ctx.Err() != nil {
		return skipped(node, reasonCancelled, domain.ErrCancelled), nil
	}
	err = r.call(ctx, "create", node.Kind, func(ctx context.Context) error {
		var err error
		id, err = r.provider.Create(ctx, node, attrs)
		return err
	})
	if err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) && perr.OrphanID != "" {
			r.warnDangling(rn, node, perr.OrphanID,
				fmt.Sprintf("create failed and %s could not be removed: %v", perr.OrphanID, err))
		}
		return r.recordFailure(ctx, out, rec, err)
	}

	rec.ProviderID = id
	rec.LastStatus = domain.StatusCreated
	out.ProviderID = id
	if err := r.put(ctx, rec); err != nil {
		r.warnDangling(rn, node, id, fmt.Sprintf("created %s but could not record it: %v", id, err))
		return failed(out, err), err
	}
	out.Outcome = domain.OutcomeCreated
	return out, nil
}

// adoptNode takes over the resource found under id. Until the live resource
// matches desired, its record holds the described attributes, so a
// mismatch in a replacement attribute is reported on every run.
func (r *Reconciler) adoptNode(ctx context.Context, node domain.ResourceNode, desired domain.ResourceRecord, id string) (domain.NodeOutcome, error) {
	out := newOutcome(node)
	out.ProviderID = id

	var live domain.Attributes
	err := r.call(ctx, "describe", node.Kind, func(ctx context.Context) error {
		var err error
		live, err = r.provider.Describe(ctx, node.Kind, id)
		return err
	})
	if err != nil {
		return r.recordFailure(ctx, out, desired, err)
	}

	found := domain.ResourceRecord{
		LogicalName:    node.LogicalName,
		Kind:           node.Kind,
		ProviderID:     id,
		AttributesHash: live.Hash(),
		Attributes:     live,
		LastStatus:     domain.StatusCreated,
	}
	var changed []string
	for _, f := range compareLive(desired.Attributes, live) {
		changed = append(changed, f.Key)
	}
	if repl := replacementFields(changed); len(repl) > 0 {
		if err := r.put(ctx, found); err != nil {
			return failed(out, err), err
		}
		return needsReplacement(out, repl), nil
	}

	if len(changed) > 0 {
		if ctx.Err() != nil {
			return skipped(node, reasonCancelled, domain.ErrCancelled), nil
		}
		out.ChangedFields = changed
		err = r.call(ctx, "update", node.Kind, func(ctx context.Context) error {
			return r.provider.Update(ctx, node.Kind, id, desired.Attributes)
		})
		if err != nil {
			found.LastStatus = domain.StatusFailed
			if perr := r.put(ctx, found); perr != nil {
				return failed(out, err), perr
			}
			return failed(out, err), nil
		}
	}

	desired.ProviderID = id
	desired.LastStatus = domain.StatusCreated
	if err := r.put(ctx, desired); err != nil {
		return failed(out, err), err
	}
	out.Outcome = domain.OutcomeAdopted
	return out, nil
}

func (r *Reconciler) recordFailure(ctx context.Context, out domain.NodeOutcome, rec domain.ResourceRecord, err error) (domain.NodeOutcome, error) {
	rec.LastStatus = domain.StatusFailed
	rec.ProviderID = ""
	rec.AttributesHash = ""
	rec.Attributes = nil
	if perr := r.put(ctx, rec); perr != nil {
		return failed(out, err), perr
	}
	return failed(out, err), nil
}
