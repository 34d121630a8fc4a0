// Package search implements best-first forward search over fact sets and
// the extraction of a plan from the goal node it finds.
//
// Every call to Search builds its own frontier and closed set; nothing is
// shared between calls. A single call is synchronous and deterministic for a
// fixed successor order: the frontier pops the lowest g+h first and breaks
// ties by insertion order, first found wins.
//
// Closed fact sets are never reopened, even when a cheaper path to one is
// found later.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joeycumines/harvest/internal/domain"
	"github.com/joeycumines/harvest/internal/fact"
)

// debugSearch enables per-expansion tracing. Set HARVEST_DEBUG_SEARCH=1.
var debugSearch = os.Getenv("HARVEST_DEBUG_SEARCH") == "1"

// Space is the state space searched. *domain.Problem implements it.
type Space interface {
	Initial() fact.Set
	Satisfied(s fact.Set) bool
	Heuristic(s fact.Set) int
	Successors(s fact.Set) []domain.Transition
}

// ErrNoPlan is matched by every *PlanningFailure.
var ErrNoPlan = errors.New("no plan")

// Reason says why a search ended without a plan.
type Reason string

const (
	// ReasonExhausted means the frontier emptied.
	ReasonExhausted Reason = "exhausted"
	// ReasonBudget means Options.MaxExpansions was reached.
	ReasonBudget Reason = "budget"
	// ReasonCanceled means the context was canceled.
	ReasonCanceled Reason = "canceled"
	// ReasonTimeout means Options.Timeout elapsed.
	ReasonTimeout Reason = "timeout"
)

// PlanningFailure is the terminal result of a search that found no plan.
// It is an ordinary outcome, not a fault: callers are expected to fall back
// to an idle policy.
type PlanningFailure struct {
	Reason Reason
	Stats  Stats
}

func (e *PlanningFailure) Error() string {
	return fmt.Sprintf("no plan: %s after %d expansions", e.Reason, e.Stats.Expanded)
}

// Is makes errors.Is(err, ErrNoPlan) true.
func (e *PlanningFailure) Is(target error) bool {
	return target == ErrNoPlan
}

// Stats describes the work done by one search.
type Stats struct {
	Expanded           int           `json:"expanded" yaml:"expanded"`
	Generated          int           `json:"generated" yaml:"generated"`
	ClosedDuplicates   int           `json:"closedDuplicates" yaml:"closedDuplicates"`
	FrontierDuplicates int           `json:"frontierDuplicates" yaml:"frontierDuplicates"`
	Relaxations        int           `json:"relaxations" yaml:"relaxations"`
	PeakFrontier       int           `json:"peakFrontier" yaml:"peakFrontier"`
	Elapsed            time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Options bound and instrument a search. The zero value is unbounded.
type Options struct {
	// MaxExpansions stops the search after this many expansions. Zero means
	// no limit.
	MaxExpansions int
	// Timeout stops the search after this long. Zero means no limit.
	Timeout time.Duration
	// Metrics, if set, records the outcome.
	Metrics *Metrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Result is a successful search.
type Result struct {
	Plan  domain.Plan
	Goal  *Node
	Stats Stats
}

// Search runs best-first search from space.Initial until a node satisfying
// the goal is popped. It returns a *PlanningFailure if the frontier empties,
// the expansion budget is spent, or ctx is done first.
func Search(ctx context.Context, space Space, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		start    = time.Now()
		stats    Stats
		frontier = newFrontier()
		closed   = newIndex()
	)
	fail := func(reason Reason) (*Result, error) {
		stats.Elapsed = time.Since(start)
		opts.Metrics.observe(string(reason), stats, 0)
		logger.Info("[search] no plan", "reason", reason, "expanded", stats.Expanded, "generated", stats.Generated, "elapsed", stats.Elapsed)
		return nil, &PlanningFailure{Reason: reason, Stats: stats}
	}

	initial := space.Initial()
	frontier.push(&Node{Set: initial, H: space.Heuristic(initial)})
	stats.PeakFrontier = 1

	for {
		if err := ctx.Err(); err != nil {
			if opts.Timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
				return fail(ReasonTimeout)
			}
			return fail(ReasonCanceled)
		}

		node, ok := frontier.pop()
		if !ok {
			return fail(ReasonExhausted)
		}

		if space.Satisfied(node.Set) {
			plan := Extract(node)
			stats.Elapsed = time.Since(start)
			opts.Metrics.observe("found", stats, plan.Len())
			logger.Info("[search] plan found", "length", plan.Len(), "expanded", stats.Expanded, "generated", stats.Generated, "elapsed", stats.Elapsed)
			return &Result{Plan: plan, Goal: node, Stats: stats}, nil
		}

		if opts.MaxExpansions > 0 && stats.Expanded >= opts.MaxExpansions {
			return fail(ReasonBudget)
		}

		closed.add(node)
		stats.Expanded++
		if debugSearch {
			logger.Debug("[search] expand", "g", node.G, "h", node.H, "op", node.Op.String(), "facts", node.Set.String())
		}

		for _, tr := range space.Successors(node.Set) {
			stats.Generated++
			if closed.find(tr.Next) != nil {
				stats.ClosedDuplicates++
				continue
			}
			g := node.G + tr.Op.Cost()
			if existing := frontier.find(tr.Next); existing != nil {
				stats.FrontierDuplicates++
				if g < existing.G {
					existing.G = g
					existing.Parent = node
					existing.Op = tr.Op
					frontier.requeue(existing)
					stats.Relaxations++
				}
				continue
			}
			frontier.push(&Node{
				Set:    tr.Next,
				Parent: node,
				Op:     tr.Op,
				G:      g,
				H:      space.Heuristic(tr.Next),
			})
		}
		stats.PeakFrontier = max(stats.PeakFrontier, frontier.len())
	}
}

// Extract follows parent references from goal to the root and returns the
// operators along the way in execution order.
func Extract(goal *Node) domain.Plan {
	var plan domain.Plan
	for n := goal; n != nil && n.Parent != nil; n = n.Parent {
		plan = append(plan, n.Op)
	}
	for i, j := 0, len(plan)-1; i < j; i, j = i+1, j-1 {
		plan[i], plan[j] = plan[j], plan[i]
	}
	return plan
}
