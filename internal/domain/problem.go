package domain

import (
	"fmt"

	"github.com/joeycumines/harvest/internal/fact"
	"github.com/joeycumines/harvest/internal/world"
)

// Problem is one planning episode: the initial fact set built from a
// snapshot, the goal, and the operator library.
type Problem struct {
	params  Params
	initial fact.Set
	goal    []fact.Literal
	lib     *Library
	base    world.Base
}

// NewProblem converts snap into the initial fact set. It has no side
// effects on snap.
//
// Each worker contributes At(id, pos), then AtResource(id, kind) if it is
// adjacent to the nearest live node of kind (gold is checked first), else
// AtHome(id). A worker adjacent to no resource is treated as home-bound; the
// dispatcher walks it to the base when an operator needs it there. Any
// positive cargo becomes Holds(id, kind, GatherUnit).
func NewProblem(snap *world.Snapshot, params Params) (*Problem, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot", ErrMissingEntity)
	}
	base, ok := snap.Base()
	if !ok {
		return nil, fmt.Errorf("%w: snapshot has no base", ErrMissingEntity)
	}
	if len(snap.Workers) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no workers", ErrMissingEntity)
	}
	lib, err := NewLibrary(params, snap.MaxID())
	if err != nil {
		return nil, err
	}

	lits := make([]fact.Literal, 0, 3*len(snap.Workers)+3)
	for _, u := range snap.Workers {
		lits = append(lits, fact.At(u.ID, u.Pos))
		lits = append(lits, locate(snap, u, params.GatherUnit))
		if !u.Cargo.Empty() {
			lits = append(lits, fact.Holds(u.ID, u.Cargo.Kind, params.GatherUnit))
		}
	}
	for _, r := range world.Resources {
		lits = append(lits, fact.BaseStock(r, base.Stock[r]))
	}
	lits = append(lits, fact.WorkforceSize(len(snap.Workers)))

	goal := make([]fact.Literal, 0, len(world.Resources))
	for _, r := range world.Resources {
		goal = append(goal, fact.BaseStock(r, params.Target(r)))
	}

	return &Problem{
		params:  lib.Params(),
		initial: fact.NewSet(lits...),
		goal:    goal,
		lib:     lib,
		base:    base,
	}, nil
}

func locate(snap *world.Snapshot, u world.Unit, unit int) fact.Literal {
	for _, r := range world.Resources {
		if n, ok := snap.Nearest(r, u.Pos, unit); ok && u.Pos.Adjacent(n.Pos) {
			return fact.AtResource(u.ID, r)
		}
	}
	return fact.AtHome(u.ID)
}

// Initial returns the initial fact set.
func (p *Problem) Initial() fact.Set { return p.initial }

// Goal returns the goal literals.
func (p *Problem) Goal() []fact.Literal { return append([]fact.Literal(nil), p.goal...) }

// Params returns the episode parameters.
func (p *Problem) Params() Params { return p.params.Clone() }

// Library returns the operator library.
func (p *Problem) Library() *Library { return p.lib }

// Base returns the base the problem was built against.
func (p *Problem) Base() world.Base { return p.base }

// Successors returns every applicable transition from s.
func (p *Problem) Successors(s fact.Set) []Transition { return p.lib.Successors(s) }

// Apply applies op to s.
func (p *Problem) Apply(op Operator, s fact.Set) (fact.Set, error) { return p.lib.Apply(op, s) }

// Satisfied reports whether s satisfies every goal literal. A BaseStock goal
// is met by a stockpile of at least the target amount; any other goal
// literal must be present.
func (p *Problem) Satisfied(s fact.Set) bool {
	v := decode(s)
	for _, g := range p.goal {
		if g.Kind == fact.KindBaseStock {
			if v.stock[g.Resource] < g.Amount {
				return false
			}
			continue
		}
		if !s.Contains(g) {
			return false
		}
	}
	return true
}
