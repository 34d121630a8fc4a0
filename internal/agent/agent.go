// Package agent runs planning episodes: it plans once from the first
// snapshot, then dispatches the plan one round at a time.
//
// If search fails the agent idles for the rest of the episode, returning
// empty batches. A snapshot missing a base or workers is a setup error.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joeycumines/harvest/internal/dispatch"
	"github.com/joeycumines/harvest/internal/domain"
	"github.com/joeycumines/harvest/internal/search"
	"github.com/joeycumines/harvest/internal/storage"
	"github.com/joeycumines/harvest/internal/world"
)

// ErrNotStarted is returned by Step before a successful Start.
var ErrNotStarted = errors.New("agent: episode not started")

// Options configure an Agent.
type Options struct {
	// Search bounds and instruments the planner. Its Logger is replaced by
	// the episode logger when unset.
	Search search.Options
	// Journal, if set, receives the episode record from Finish.
	Journal *storage.Store
	// Scenario names the episode in the journal.
	Scenario string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Agent plays one episode at a time. It is not safe for concurrent use.
type Agent struct {
	params domain.Params
	opts   Options
	base   *slog.Logger
	logger *slog.Logger

	id      string
	started time.Time
	result  *search.Result
	exec    *dispatch.Executor
	failure error
	ticks   int
}

// New validates params and returns an idle agent.
func New(params domain.Params, opts Options) (*Agent, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{params: params.Clone(), opts: opts, base: logger, logger: logger}, nil
}

// Start begins a new episode from snap. A *search.PlanningFailure leaves
// the agent idling and is returned for reporting; any other error means the
// episode could not be set up.
func (a *Agent) Start(ctx context.Context, snap *world.Snapshot) error {
	a.id = uuid.NewString()
	a.started = time.Now()
	a.result, a.exec, a.failure, a.ticks = nil, nil, nil, 0
	a.logger = a.base.With("episode", a.id)

	problem, err := domain.NewProblem(snap, a.params)
	if err != nil {
		a.logger.Error("[agent] cannot set up episode", "error", err)
		return fmt.Errorf("episode %s: %w", a.id, err)
	}

	opts := a.opts.Search
	if opts.Logger == nil {
		opts.Logger = a.logger
	}
	res, err := search.Search(ctx, problem, opts)
	if err != nil {
		var failure *search.PlanningFailure
		if !errors.As(err, &failure) {
			return fmt.Errorf("episode %s: %w", a.id, err)
		}
		a.failure = err
		a.logger.Warn("[agent] no plan, idling", "reason", failure.Reason, "expanded", failure.Stats.Expanded)
		return err
	}

	a.result = res
	a.exec = dispatch.New(res.Plan, a.params, dispatch.Options{Logger: a.logger})
	a.logger.Info("[agent] episode started", "steps", res.Plan.Len(), "workers", len(snap.Workers))
	return nil
}

// Step returns the commands for this round.
func (a *Agent) Step(snap *world.Snapshot) (world.Batch, error) {
	if a.failure != nil {
		a.ticks++
		return world.Batch{}, nil
	}
	if a.exec == nil {
		return nil, ErrNotStarted
	}
	a.ticks++
	return a.exec.Tick(snap)
}

// ID is the current episode id.
func (a *Agent) ID() string { return a.id }

// Idle reports whether the agent is idling after a planning failure.
func (a *Agent) Idle() bool { return a.failure != nil }

// Done reports whether the plan has been fully dispatched.
func (a *Agent) Done() bool { return a.exec != nil && a.exec.Done() }

// Ticks is the number of rounds stepped this episode.
func (a *Agent) Ticks() int { return a.ticks }

// Result is the successful search, if any.
func (a *Agent) Result() *search.Result { return a.result }

// Executor is the active dispatcher, if any.
func (a *Agent) Executor() *dispatch.Executor { return a.exec }

// Plan returns the episode's plan, empty if search failed.
func (a *Agent) Plan() domain.Plan {
	if a.result == nil {
		return nil
	}
	return a.result.Plan
}

// Finish closes the episode. runErr is the error that stopped the round
// loop, if any. The record is saved to the journal when one is configured.
func (a *Agent) Finish(snap *world.Snapshot, runErr error) (*storage.Episode, error) {
	if a.id == "" {
		return nil, ErrNotStarted
	}
	ep := &storage.Episode{
		ID:         a.id,
		Scenario:   a.opts.Scenario,
		StartedAt:  a.started,
		FinishedAt: time.Now(),
		Plan:       a.Plan().Trace(),
		Ticks:      a.ticks,
		Targets:    make(map[string]int),
	}
	for _, r := range world.Resources {
		ep.Targets[string(r)] = a.params.Target(r)
	}
	if b, ok := snap.Base(); ok {
		ep.Stock = make(map[string]int)
		for _, r := range world.Resources {
			ep.Stock[string(r)] = b.Stock[r]
		}
	}

	var stats search.Stats
	switch {
	case a.failure != nil:
		ep.Outcome = storage.OutcomeNoPlan
		ep.Error = a.failure.Error()
		var failure *search.PlanningFailure
		if errors.As(a.failure, &failure) {
			stats = failure.Stats
		}
	case runErr != nil:
		ep.Outcome = storage.OutcomeAborted
		ep.Error = runErr.Error()
	case a.Done():
		ep.Outcome = storage.OutcomeComplete
	default:
		ep.Outcome = storage.OutcomeTickLimit
	}
	if a.result != nil {
		stats = a.result.Stats
	}
	ep.Search = storage.SearchSummary{
		Expanded:    stats.Expanded,
		Generated:   stats.Generated,
		Relaxations: stats.Relaxations,
		ElapsedMS:   stats.Elapsed.Milliseconds(),
	}

	a.logger.Info("[agent] episode finished", "outcome", ep.Outcome, "ticks", ep.Ticks, "stock", ep.Stock)
	if a.opts.Journal != nil {
		if err := a.opts.Journal.Save(ep); err != nil {
			return ep, err
		}
	}
	return ep, nil
}
