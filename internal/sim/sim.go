// Package sim is a small deterministic grid world. It plays the environment
// side of the planner's boundary: it hands out snapshots, accepts command
// batches and advances one round per Step.
//
// Orders persist across rounds. A worker told to move keeps moving, one
// 8-connected step per round, until it is adjacent to the destination; a
// gather runs for Config.GatherTicks rounds; a deposit completes in one
// round; a produce waits until the base can afford it.
package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/joeycumines/harvest/internal/world"
)

// Config holds the world's rules.
type Config struct {
	// GatherUnit is the most a single gather collects.
	GatherUnit int
	// GatherTicks is how many rounds a gather takes.
	GatherTicks int
	// WorkerCost is the gold a produce spends.
	WorkerCost int
}

// DefaultConfig matches the planner's default parameters.
func DefaultConfig() Config {
	return Config{GatherUnit: 100, GatherTicks: 2, WorkerCost: 400}
}

type order struct {
	cmd      world.Command
	progress int
	// from is where the last side-step of a move started
	from     world.Point
	sidestep bool
}

// World is the simulated environment. It is not safe for concurrent use.
type World struct {
	cfg    Config
	state  *world.Snapshot
	orders map[int]*order
	logger *slog.Logger
}

// New returns a world starting from a copy of snap.
func New(snap *world.Snapshot, cfg Config) (*World, error) {
	if cfg.GatherUnit <= 0 || cfg.GatherTicks <= 0 || cfg.WorkerCost <= 0 {
		return nil, fmt.Errorf("invalid sim config: %+v", cfg)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	s := snap.Clone()
	for i := range s.Bases {
		if s.Bases[i].Stock == nil {
			s.Bases[i].Stock = make(map[world.Resource]int)
		}
	}
	return &World{
		cfg:    cfg,
		state:  s,
		orders: make(map[int]*order),
		logger: slog.Default(),
	}, nil
}

// SetLogger replaces the logger, which defaults to slog.Default().
func (w *World) SetLogger(l *slog.Logger) { w.logger = l }

// Snapshot returns a deep copy of the current state.
func (w *World) Snapshot() *world.Snapshot { return w.state.Clone() }

// Tick is the number of rounds stepped so far.
func (w *World) Tick() int { return w.state.Tick }

// Stock returns the first base's stockpile of r.
func (w *World) Stock(r world.Resource) int {
	b, ok := w.state.Base()
	if !ok {
		return 0
	}
	return b.Stock[r]
}

// Idle reports whether no orders are outstanding.
func (w *World) Idle() bool { return len(w.orders) == 0 }

// Apply validates batch and records an order per valid command, replacing
// any previous order of that entity. Invalid commands are skipped and
// reported together.
func (w *World) Apply(batch world.Batch) error {
	var errs []error
	for _, id := range w.sortedIDs(batch) {
		cmd := batch[id]
		if err := w.check(id, cmd); err != nil {
			errs = append(errs, fmt.Errorf("entity %d %s: %w", id, cmd, err))
			continue
		}
		w.orders[id] = &order{cmd: cmd}
	}
	return errors.Join(errs...)
}

func (w *World) sortedIDs(batch world.Batch) []int {
	ids := make([]int, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (w *World) check(id int, cmd world.Command) error {
	switch cmd.Verb {
	case world.Move, world.Gather, world.Deposit:
		if _, ok := w.state.Worker(id); !ok {
			return errors.New("not a worker")
		}
	case world.Produce:
		if !w.isBase(id) {
			return errors.New("not a base")
		}
		if cmd.Unit != world.UnitWorker {
			return fmt.Errorf("cannot produce %q", cmd.Unit)
		}
		return nil
	default:
		return fmt.Errorf("unknown verb %q", cmd.Verb)
	}
	switch cmd.Verb {
	case world.Gather:
		if _, ok := w.state.Node(cmd.Target); !ok {
			return errors.New("no such node")
		}
	case world.Deposit:
		if !w.isBase(cmd.Target) {
			return errors.New("no such base")
		}
	case world.Move:
		if !w.state.InBounds(cmd.Pos) {
			return errors.New("destination off the grid")
		}
	}
	return nil
}

func (w *World) isBase(id int) bool {
	for _, b := range w.state.Bases {
		if b.ID == id {
			return true
		}
	}
	return false
}

// Deplete empties and removes a resource node.
func (w *World) Deplete(id int) bool {
	i := slices.IndexFunc(w.state.Nodes, func(n world.Node) bool { return n.ID == id })
	if i < 0 {
		return false
	}
	w.state.Nodes = slices.Delete(w.state.Nodes, i, i+1)
	return true
}

// Step advances one round, carrying out orders in ascending entity order.
func (w *World) Step() {
	ids := make([]int, 0, len(w.orders))
	for id := range w.orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		o := w.orders[id]
		var finished bool
		switch o.cmd.Verb {
		case world.Move:
			finished = w.move(id, o)
		case world.Gather:
			finished = w.gather(id, o)
		case world.Deposit:
			finished = w.deposit(id, o.cmd.Target)
		case world.Produce:
			finished = w.produce(id)
		default:
			finished = true
		}
		if finished {
			delete(w.orders, id)
		}
	}
	w.state.Tick++
}

func (w *World) worker(id int) *world.Unit {
	for i := range w.state.Workers {
		if w.state.Workers[i].ID == id {
			return &w.state.Workers[i]
		}
	}
	return nil
}

func (w *World) move(id int, o *order) bool {
	dest := o.cmd.Pos
	u := w.worker(id)
	if u == nil {
		return true
	}
	if u.Pos.Adjacent(dest) || u.Pos == dest {
		return true
	}
	next, ok := w.closer(u.Pos, dest)
	if ok {
		o.sidestep = false
	} else if next, ok = w.aside(u.Pos, dest, o); ok {
		o.from, o.sidestep = u.Pos, true
	}
	if !ok {
		w.logger.Debug("[sim] worker blocked", "worker", id, "pos", u.Pos.String(), "dest", dest.String())
		return false
	}
	u.Pos = next
	return u.Pos.Adjacent(dest)
}

// closer returns the first free cell that closes the distance to dest,
// trying the straight step first and then the neighbours in a fixed order.
func (w *World) closer(p, dest world.Point) (world.Point, bool) {
	dist := p.Chebyshev(dest)
	candidates := append([]world.Point{p.Add(p.Toward(dest))}, p.Neighbours()...)
	for _, c := range candidates {
		if !w.state.Occupied(c) && c.Chebyshev(dest) < dist {
			return c, true
		}
	}
	return world.Point{}, false
}

// aside returns a free neighbour at the same distance from dest, used to
// walk around a worker parked on the only closer cell. It never steps back
// to where the previous side-step started.
func (w *World) aside(p, dest world.Point, o *order) (world.Point, bool) {
	dist := p.Chebyshev(dest)
	for _, c := range p.Neighbours() {
		if o.sidestep && c == o.from {
			continue
		}
		if !w.state.Occupied(c) && c.Chebyshev(dest) == dist {
			return c, true
		}
	}
	return world.Point{}, false
}

func (w *World) gather(id int, o *order) bool {
	u := w.worker(id)
	if u == nil || !u.Cargo.Empty() {
		return true
	}
	i := slices.IndexFunc(w.state.Nodes, func(n world.Node) bool { return n.ID == o.cmd.Target })
	if i < 0 || !u.Pos.Adjacent(w.state.Nodes[i].Pos) {
		w.logger.Debug("[sim] gather cancelled", "worker", id, "node", o.cmd.Target)
		return true
	}
	o.progress++
	if o.progress < w.cfg.GatherTicks {
		return false
	}
	n := &w.state.Nodes[i]
	amount := min(w.cfg.GatherUnit, n.Remaining)
	n.Remaining -= amount
	u.Cargo = world.Cargo{Kind: n.Kind, Amount: amount}
	if n.Remaining <= 0 {
		w.state.Nodes = slices.Delete(w.state.Nodes, i, i+1)
	}
	return true
}

func (w *World) deposit(id, baseID int) bool {
	u := w.worker(id)
	if u == nil || u.Cargo.Empty() {
		return true
	}
	for i := range w.state.Bases {
		b := &w.state.Bases[i]
		if b.ID != baseID {
			continue
		}
		if !u.Pos.Adjacent(b.Pos) {
			w.logger.Debug("[sim] deposit out of reach", "worker", id, "base", baseID)
			return true
		}
		b.Stock[u.Cargo.Kind] += u.Cargo.Amount
		u.Cargo = world.Cargo{}
		return true
	}
	return true
}

func (w *World) produce(baseID int) bool {
	for i := range w.state.Bases {
		b := &w.state.Bases[i]
		if b.ID != baseID {
			continue
		}
		if b.Stock[world.Gold] < w.cfg.WorkerCost {
			return false
		}
		for _, p := range b.Pos.Neighbours() {
			if w.state.Occupied(p) {
				continue
			}
			b.Stock[world.Gold] -= w.cfg.WorkerCost
			id := w.state.MaxID() + 1
			w.state.Workers = append(w.state.Workers, world.Unit{ID: id, Pos: p})
			w.logger.Debug("[sim] worker produced", "worker", id, "pos", p.String())
			return true
		}
		return false
	}
	return true
}
