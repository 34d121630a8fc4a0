// Package dispatch turns a plan into per-tick command batches.
//
// The plan is executed as a memorised behaviour tree sequence with one step
// per operator, so exactly one operator is active at a time. Each step runs
// a small PA-BT plan whose conditions are read from the live snapshot: the
// step approaches its targets until every participant is adjacent, performs
// the primitive, and succeeds once the operator's effect is observed.
// Targets are resolved again on every tick; a resource node that was
// depleted after planning is replaced by the next nearest one of its kind.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	bt "github.com/joeycumines/go-behaviortree"
	pabt "github.com/joeycumines/go-pabt"

	"github.com/joeycumines/harvest/internal/domain"
	"github.com/joeycumines/harvest/internal/world"
)

// ErrTargetUnavailable is returned by Tick when the active operator has no
// live target at all, for example when every node of a kind is gone.
var ErrTargetUnavailable = errors.New("target unavailable")

// Options configure an Executor.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Executor dispatches one plan. It is driven by the environment's tick loop
// and is not safe for concurrent use.
type Executor struct {
	plan   domain.Plan
	params domain.Params
	logger *slog.Logger
	root   bt.Node
	board  Blackboard
	cursor int
	done   bool
	err    error

	// valid only during Tick
	snap  *world.Snapshot
	batch world.Batch

	bindings map[int]int
	phases   map[int]Phase
	// moving is the target id of the last move issued to each worker.
	moving map[int]int
}

// New builds an executor for plan.
func New(plan domain.Plan, params domain.Params, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		plan:     slices.Clone(plan),
		params:   params.Clone(),
		logger:   logger,
		bindings: make(map[int]int),
		phases:   make(map[int]Phase),
		moving:   make(map[int]int),
	}
	steps := make([]bt.Node, len(e.plan))
	for i, op := range e.plan {
		s := &step{e: e, index: i, op: op}
		steps[i] = s.node()
	}
	e.root = bt.New(bt.Memorize(bt.Sequence), steps...)
	return e
}

// Tick advances the plan against snap and returns the commands for this
// round. An empty batch means the active step is waiting on the
// environment. Once the plan is complete every batch is empty.
func (e *Executor) Tick(snap *world.Snapshot) (world.Batch, error) {
	if snap == nil {
		return nil, errors.New("dispatch: nil snapshot")
	}
	if e.err != nil {
		return nil, e.err
	}
	batch := world.Batch{}
	if e.done {
		return batch, nil
	}

	e.snap, e.batch = snap, batch
	defer func() { e.snap, e.batch = nil, nil }()

	status, err := e.root.Tick()
	if err == nil && status == bt.Failure {
		err = fmt.Errorf("step %d: %w", e.cursor+1, ErrTargetUnavailable)
	}
	if err != nil {
		e.err = err
		e.logger.Warn("[dispatch] plan aborted", "step", e.cursor+1, "tick", snap.Tick, "error", err)
		return nil, err
	}
	if status == bt.Success {
		e.done = true
		e.cursor = len(e.plan)
		e.logger.Info("[dispatch] plan complete", "steps", len(e.plan), "tick", snap.Tick)
	}
	return batch, nil
}

// Done reports whether every step has completed.
func (e *Executor) Done() bool { return e.done }

// Cursor is the index of the active step, or the plan length once done.
func (e *Executor) Cursor() int { return e.cursor }

// Plan returns the plan being executed.
func (e *Executor) Plan() domain.Plan { return slices.Clone(e.plan) }

// Phase returns the gather-cycle phase of a worker.
func (e *Executor) Phase(id int) Phase { return e.phases[id] }

// Binding returns the worker id bound to an entity id allocated during
// planning by ExpandWorkforce.
func (e *Executor) Binding(planned int) (int, bool) {
	id, ok := e.bindings[planned]
	return id, ok
}

// Readings returns the latest value of every condition evaluated by the
// active step.
func (e *Executor) Readings() map[string]any { return e.board.Snapshot() }

func (e *Executor) actual(planned int) int {
	if id, ok := e.bindings[planned]; ok {
		return id
	}
	return planned
}

// emit adds cmd to this round's batch. It reports false if id already has a
// command this round; the caller retries on a later tick.
func (e *Executor) emit(id int, cmd world.Command) bool {
	if err := e.batch.Put(id, cmd); err != nil {
		if debugDispatch {
			e.logger.Debug("[dispatch] command deferred", "entity", id, "error", err)
		}
		return false
	}
	return true
}

// step executes one operator.
type step struct {
	e     *Executor
	index int
	op    domain.Operator
	plan  bt.Node

	// worker ids present when the step started
	baseline map[int]bool
	// target id each primitive was issued against, per entity
	performed map[int]int
	// acted is set when approach or perform ran during the current run
	acted bool
}

// planGrowthTicks bounds how often run ticks the step's PA-BT tree in one
// round. A new tree grows a level per tick before it reaches an action.
const planGrowthTicks = 4

func (s *step) node() bt.Node {
	return bt.New(bt.Memorize(bt.Sequence), bt.New(s.start), bt.New(s.run))
}

func (s *step) start([]bt.Node) (bt.Status, error) {
	e := s.e
	e.cursor = s.index
	e.board.Clear()
	s.baseline = make(map[int]bool, len(e.snap.Workers))
	for _, u := range e.snap.Workers {
		s.baseline[u.ID] = true
	}
	s.performed = make(map[int]int)

	st := newState(&e.board, map[string]func() bool{
		keyResolvable: s.resolvable,
		keyAdjacent:   s.adjacent,
		keyDone:       s.done,
	})
	switch s.op.Kind {
	case domain.GotoResource, domain.GotoHome:
		st.actions.register(newAction("approach", []string{keyResolvable}, keyDone, s.approach))
	default:
		st.actions.register(newAction("approach", []string{keyResolvable}, keyAdjacent, s.approach))
		st.actions.register(newAction("perform", []string{keyAdjacent}, keyDone, s.perform))
	}
	plan, err := pabt.INew(st, []pabt.IConditions{{holds(keyDone)}})
	if err != nil {
		return bt.Failure, fmt.Errorf("step %d %s: %w", s.index+1, s.op, err)
	}
	s.plan = plan.Node()

	var phase Phase
	switch s.op.Kind {
	case domain.GotoResource:
		phase = EnRouteToResource
	case domain.Gather:
		phase = Gathering
	case domain.GotoHome:
		phase = EnRouteToBase
	case domain.Deposit:
		phase = Depositing
	}
	for _, id := range s.participants() {
		e.phases[id] = phase
		delete(e.moving, id)
	}
	e.logger.Debug("[dispatch] step started", "step", s.index+1, "op", s.op.String(), "tick", e.snap.Tick)
	return bt.Success, nil
}

func (s *step) run([]bt.Node) (bt.Status, error) {
	if s.done() {
		s.finish()
		return bt.Success, nil
	}
	if !s.resolvable() {
		return bt.Failure, fmt.Errorf("step %d %s: %w", s.index+1, s.op, ErrTargetUnavailable)
	}
	s.acted = false
	for range planGrowthTicks {
		status, err := s.plan.Tick()
		if err != nil {
			return bt.Failure, fmt.Errorf("step %d %s: %w", s.index+1, s.op, err)
		}
		if s.acted || status != bt.Running {
			break
		}
	}
	if !s.acted {
		if debugDispatch {
			s.e.logger.Debug("[dispatch] no action ticked, acting directly", "step", s.index+1)
		}
		if s.op.Kind == domain.GotoResource || s.op.Kind == domain.GotoHome || !s.adjacent() {
			return s.approach(nil)
		}
		return s.perform(nil)
	}
	return bt.Running, nil
}

func (s *step) finish() {
	e := s.e
	switch s.op.Kind {
	case domain.Deposit:
		for _, id := range s.participants() {
			e.phases[id] = Idle
		}
	case domain.ExpandWorkforce:
		id, _ := s.produced()
		e.bindings[s.op.NewEntity] = id
		e.phases[id] = Idle
		e.logger.Info("[dispatch] workforce expanded", "planned", s.op.NewEntity, "worker", id)
	}
	e.logger.Debug("[dispatch] step done", "step", s.index+1, "op", s.op.String(), "tick", e.snap.Tick)
}

func (s *step) participants() []int {
	ids := make([]int, len(s.op.Participants))
	for i, p := range s.op.Participants {
		ids[i] = s.e.actual(p)
	}
	return ids
}

// pending returns the participants whose part of the operator is not yet
// observed as complete.
func (s *step) pending() []int {
	var out []int
	for _, id := range s.participants() {
		u, ok := s.e.snap.Worker(id)
		if !ok {
			out = append(out, id)
			continue
		}
		switch s.op.Kind {
		case domain.Gather:
			if u.Cargo.Kind == s.op.Resource && !u.Cargo.Empty() {
				continue
			}
		case domain.Deposit:
			if u.Cargo.Empty() {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// target resolves the live target of a participant: the nearest node of the
// operator's kind, or the base.
func (s *step) target(id int) (pos world.Point, targetID int, ok bool) {
	snap := s.e.snap
	switch s.op.Kind {
	case domain.GotoResource, domain.Gather:
		u, found := snap.Worker(id)
		if !found {
			return world.Point{}, 0, false
		}
		n, found := snap.Nearest(s.op.Resource, u.Pos, s.e.params.GatherUnit)
		return n.Pos, n.ID, found
	default:
		b, found := snap.Base()
		return b.Pos, b.ID, found
	}
}

func (s *step) resolvable() bool {
	if s.op.Kind == domain.ExpandWorkforce {
		_, ok := s.e.snap.Base()
		return ok
	}
	for _, id := range s.pending() {
		if _, _, ok := s.target(id); !ok {
			return false
		}
	}
	return true
}

func (s *step) adjacent() bool {
	if s.op.Kind == domain.ExpandWorkforce {
		return true
	}
	for _, id := range s.pending() {
		u, ok := s.e.snap.Worker(id)
		if !ok {
			return false
		}
		pos, _, ok := s.target(id)
		if !ok || !u.Pos.Adjacent(pos) {
			return false
		}
	}
	return true
}

func (s *step) done() bool {
	switch s.op.Kind {
	case domain.GotoResource, domain.GotoHome:
		return s.adjacent()
	case domain.ExpandWorkforce:
		_, ok := s.produced()
		return ok
	default:
		return len(s.pending()) == 0
	}
}

// produced returns the lowest worker id that was not present when the step
// started.
func (s *step) produced() (int, bool) {
	for _, id := range s.e.snap.WorkerIDs() {
		if !s.baseline[id] {
			return id, true
		}
	}
	return 0, false
}

// approach moves every pending participant toward its live target. A move
// is issued again only when the resolved target changes.
func (s *step) approach([]bt.Node) (bt.Status, error) {
	e := s.e
	s.acted = true
	for _, id := range s.pending() {
		pos, tid, ok := s.target(id)
		if !ok {
			return bt.Failure, nil
		}
		u, ok := e.snap.Worker(id)
		if !ok {
			return bt.Failure, nil
		}
		if u.Pos.Adjacent(pos) {
			continue
		}
		if last, ok := e.moving[id]; ok && last == tid {
			continue
		}
		if e.emit(id, world.MoveToward(pos)) {
			e.moving[id] = tid
		}
	}
	return bt.Running, nil
}

// perform issues the operator's primitive once per participant and target.
func (s *step) perform([]bt.Node) (bt.Status, error) {
	e := s.e
	s.acted = true
	if s.op.Kind == domain.ExpandWorkforce {
		b, ok := e.snap.Base()
		if !ok {
			return bt.Failure, nil
		}
		if _, issued := s.performed[b.ID]; !issued && e.emit(b.ID, world.ProduceUnit(world.UnitWorker)) {
			s.performed[b.ID] = b.ID
		}
		return bt.Running, nil
	}
	for _, id := range s.pending() {
		_, tid, ok := s.target(id)
		if !ok {
			return bt.Failure, nil
		}
		if last, issued := s.performed[id]; issued && last == tid {
			continue
		}
		var cmd world.Command
		switch s.op.Kind {
		case domain.Gather:
			cmd = world.GatherFrom(tid)
		case domain.Deposit:
			cmd = world.DepositAt(tid)
		default:
			continue
		}
		if e.emit(id, cmd) {
			s.performed[id] = tid
		}
	}
	return bt.Running, nil
}
