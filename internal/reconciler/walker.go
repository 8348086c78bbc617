package reconciler

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
)

const (
	reasonDependencyFailed = "DependencyFailed"
	reasonCancelled        = "Cancelled"
	reasonAborted          = "Aborted"
)

// visitFunc handles one node once every prerequisite has an outcome. A
// non-nil error aborts the walk; nodes not yet started are skipped.
type visitFunc func(ctx context.Context, node domain.ResourceNode, prereqs map[string]domain.NodeOutcome) (domain.NodeOutcome, error)

type walker struct {
	graph       *graph.Graph
	concurrency int
	// reverse visits dependents before their dependencies.
	reverse bool
}

type visitResult struct {
	name    string
	outcome domain.NodeOutcome
	err     error
}

func skipped(node domain.ResourceNode, reason string, err error) domain.NodeOutcome {
	return domain.NodeOutcome{
		LogicalName: node.LogicalName,
		Kind:        node.Kind,
		Visibility:  node.Visibility,
		Outcome:     domain.OutcomeSkipped,
		Reason:      reason,
		Err:         err,
	}
}

// walk runs visit over the graph, at most concurrency nodes at a time.
// Scheduling happens on the calling goroutine; a node is started only
// after all of its prerequisites finished and every one of them Reached.
func (w *walker) walk(ctx context.Context, visit visitFunc) (map[string]domain.NodeOutcome, error) {
	order := w.graph.TopologicalOrder()
	if w.reverse {
		order = w.graph.ReverseOrder()
	}
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}

	prereqs := func(name string) []string {
		if w.reverse {
			return w.graph.Dependents(name)
		}
		n, _ := w.graph.Node(name)
		return n.DependsOn
	}
	next := func(name string) []string {
		if w.reverse {
			n, _ := w.graph.Node(name)
			return n.DependsOn
		}
		return w.graph.Dependents(name)
	}

	remaining := make(map[string]int, len(order))
	var ready []string
	for _, name := range order {
		remaining[name] = len(prereqs(name))
		if remaining[name] == 0 {
			ready = append(ready, name)
		}
	}

	outcomes := make(map[string]domain.NodeOutcome, len(order))
	finish := func(name string, o domain.NodeOutcome) {
		outcomes[name] = o
		for _, n := range next(name) {
			remaining[n]--
			if remaining[n] == 0 {
				ready = append(ready, n)
			}
		}
	}

	concurrency := w.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	// A slot is held until the scheduler has received the node's result.
	var g errgroup.Group
	g.SetLimit(concurrency)
	results := make(chan visitResult)
	inflight := 0
	var fatal error

	for len(outcomes) < len(order) {
		for len(ready) > 0 {
			sort.Slice(ready, func(i, j int) bool { return pos[ready[i]] < pos[ready[j]] })
			name := ready[0]
			node, _ := w.graph.Node(name)

			deps := make(map[string]domain.NodeOutcome)
			blocked := false
			for _, p := range prereqs(name) {
				deps[p] = outcomes[p]
				if !outcomes[p].Outcome.Reached() {
					blocked = true
				}
			}

			switch {
			case ctx.Err() != nil:
				ready = ready[1:]
				finish(name, skipped(node, reasonCancelled, domain.ErrCancelled))
				continue
			case blocked:
				ready = ready[1:]
				finish(name, skipped(node, reasonDependencyFailed, domain.ErrDependencyFailed))
				continue
			case fatal != nil:
				ready = ready[1:]
				finish(name, skipped(node, reasonAborted, fatal))
				continue
			}

			started := g.TryGo(func() error {
				o, err := visit(ctx, node, deps)
				results <- visitResult{name: node.LogicalName, outcome: o, err: err}
				return err
			})
			if !started {
				break
			}
			ready = ready[1:]
			inflight++
		}

		if inflight == 0 {
			break
		}
		r := <-results
		inflight--
		if r.err != nil && fatal == nil {
			fatal = r.err
		}
		finish(r.name, r.outcome)
	}

	if err := g.Wait(); fatal == nil {
		fatal = err
	}
	return outcomes, fatal
}
