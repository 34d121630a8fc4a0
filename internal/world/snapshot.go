// Package world defines the boundary between the planner and the environment
// it drives: the snapshot the planner consumes each round, and the command
// batch it hands back.
//
// The environment itself (movement physics, collision, the tick protocol) is
// an external collaborator. Everything here is plain data plus the small
// amount of geometry needed to re-resolve targets against a live snapshot.
package world

import (
	"fmt"
	"maps"
	"slices"
)

// Resource is a gatherable resource kind.
type Resource string

const (
	Gold Resource = "gold"
	Wood Resource = "wood"
)

// Resources lists every resource kind in canonical order.
var Resources = []Resource{Gold, Wood}

// Valid reports whether r is a known resource kind.
func (r Resource) Valid() bool {
	return r == Gold || r == Wood
}

// Cargo is what a worker is carrying. The zero value is an empty hold.
type Cargo struct {
	Kind   Resource `yaml:"kind,omitempty"`
	Amount int      `yaml:"amount,omitempty"`
}

// Empty reports whether nothing is being carried.
func (c Cargo) Empty() bool {
	return c.Amount <= 0
}

// Unit is a mobile gathering entity.
type Unit struct {
	ID    int   `yaml:"id"`
	Pos   Point `yaml:"pos"`
	Cargo Cargo `yaml:"cargo,omitempty"`
}

// Base is the home base that accepts deposits and produces workers.
type Base struct {
	ID    int              `yaml:"id"`
	Pos   Point            `yaml:"pos"`
	Stock map[Resource]int `yaml:"stock,omitempty"`
}

// Node is a resource node.
type Node struct {
	ID        int      `yaml:"id"`
	Kind      Resource `yaml:"kind"`
	Pos       Point    `yaml:"pos"`
	Remaining int      `yaml:"remaining"`
}

// Live reports whether the node still has anything to gather.
func (n Node) Live() bool {
	return n.Remaining > 0
}

// Snapshot is one observation of the environment.
type Snapshot struct {
	Tick    int    `yaml:"tick,omitempty"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Workers []Unit `yaml:"workers"`
	Bases   []Base `yaml:"bases"`
	Nodes   []Node `yaml:"nodes"`
}

// Base returns the home base. Only the first base is used.
func (s *Snapshot) Base() (Base, bool) {
	if s == nil || len(s.Bases) == 0 {
		return Base{}, false
	}
	return s.Bases[0], true
}

// Worker returns the worker with the given id.
func (s *Snapshot) Worker(id int) (Unit, bool) {
	for _, u := range s.Workers {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// Node returns the resource node with the given id.
func (s *Snapshot) Node(id int) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// WorkerIDs returns every worker id, ascending.
func (s *Snapshot) WorkerIDs() []int {
	ids := make([]int, 0, len(s.Workers))
	for _, u := range s.Workers {
		ids = append(ids, u.ID)
	}
	slices.Sort(ids)
	return ids
}

// Nearest resolves the nearest live node of kind from p, by Manhattan
// distance. Nodes holding at least minRemaining are preferred over nearly
// exhausted ones; remaining ties go to the lowest id.
func (s *Snapshot) Nearest(kind Resource, p Point, minRemaining int) (Node, bool) {
	var (
		best     Node
		found    bool
		bestFull bool
	)
	for _, n := range s.Nodes {
		if n.Kind != kind || !n.Live() {
			continue
		}
		full := n.Remaining >= minRemaining
		switch {
		case !found:
		case full != bestFull:
			if !full {
				continue
			}
		case p.Manhattan(n.Pos) > p.Manhattan(best.Pos):
			continue
		case p.Manhattan(n.Pos) == p.Manhattan(best.Pos) && n.ID > best.ID:
			continue
		}
		best, found, bestFull = n, true, full
	}
	return best, found
}

// InBounds reports whether p lies on the grid.
func (s *Snapshot) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.Width && p.Y < s.Height
}

// Occupied reports whether p is off the grid or holds any entity.
func (s *Snapshot) Occupied(p Point) bool {
	if !s.InBounds(p) {
		return true
	}
	for _, u := range s.Workers {
		if u.Pos == p {
			return true
		}
	}
	for _, b := range s.Bases {
		if b.Pos == p {
			return true
		}
	}
	for _, n := range s.Nodes {
		if n.Pos == p && n.Live() {
			return true
		}
	}
	return false
}

// MaxID returns the largest entity id present in the snapshot.
func (s *Snapshot) MaxID() int {
	var m int
	for _, u := range s.Workers {
		m = max(m, u.ID)
	}
	for _, b := range s.Bases {
		m = max(m, b.ID)
	}
	for _, n := range s.Nodes {
		m = max(m, n.ID)
	}
	return m
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Workers = slices.Clone(s.Workers)
	out.Nodes = slices.Clone(s.Nodes)
	out.Bases = make([]Base, len(s.Bases))
	for i, b := range s.Bases {
		b.Stock = maps.Clone(b.Stock)
		out.Bases[i] = b
	}
	return &out
}

// Validate checks structural consistency: unique ids, known resource kinds,
// positions on the grid.
func (s *Snapshot) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid grid size %dx%d", s.Width, s.Height)
	}
	seen := make(map[int]string)
	claim := func(id int, what string, p Point) error {
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("duplicate entity id %d (%s and %s)", id, prev, what)
		}
		seen[id] = what
		if !s.InBounds(p) {
			return fmt.Errorf("%s %d at %s is outside the %dx%d grid", what, id, p, s.Width, s.Height)
		}
		return nil
	}
	for _, u := range s.Workers {
		if err := claim(u.ID, "worker", u.Pos); err != nil {
			return err
		}
		if !u.Cargo.Empty() && !u.Cargo.Kind.Valid() {
			return fmt.Errorf("worker %d carries unknown resource %q", u.ID, u.Cargo.Kind)
		}
	}
	for _, b := range s.Bases {
		if err := claim(b.ID, "base", b.Pos); err != nil {
			return err
		}
		for r := range b.Stock {
			if !r.Valid() {
				return fmt.Errorf("base %d stocks unknown resource %q", b.ID, r)
			}
		}
	}
	for _, n := range s.Nodes {
		if err := claim(n.ID, "node", n.Pos); err != nil {
			return err
		}
		if !n.Kind.Valid() {
			return fmt.Errorf("node %d has unknown resource %q", n.ID, n.Kind)
		}
	}
	return nil
}
