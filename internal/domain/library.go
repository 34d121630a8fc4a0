package domain

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/harvest/internal/fact"
	"github.com/joeycumines/harvest/internal/world"
)

// Transition is one applicable operator and the fact set it produces.
type Transition struct {
	Op   Operator
	Next fact.Set
}

// Schema is one operator family, specialised to a resource kind where the
// family has one. ground enumerates candidate instances in a
// fixed order, pre is the precondition, and effects yields the delete and
// add sets.
type Schema struct {
	Kind     OpKind
	Resource world.Resource
	ground   func(l *Library, v *view) []Operator
	pre      func(l *Library, v *view, op Operator) bool
	effects  func(l *Library, v *view, op Operator) (del, add []fact.Literal)
}

// Library holds the operator schemas for one episode.
type Library struct {
	params  Params
	expand  *vm.Program
	floorID int
	schemas []Schema
}

// NewLibrary builds the operator library. floorID is the largest entity id
// known to the environment, so that ExpandWorkforce never allocates an id
// already in use.
func NewLibrary(params Params, floorID int) (*Library, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	program, err := params.compileExpandWhen()
	if err != nil {
		return nil, err
	}
	l := &Library{
		params:  params.Clone(),
		expand:  program,
		floorID: floorID,
	}
	// Enumeration order is fixed; search determinism depends on it.
	for _, r := range world.Resources {
		l.schemas = append(l.schemas, gotoResourceSchema(r))
	}
	l.schemas = append(l.schemas, gotoHomeSchema())
	for _, r := range world.Resources {
		l.schemas = append(l.schemas, gatherSchema(r))
	}
	for _, r := range world.Resources {
		l.schemas = append(l.schemas, depositSchema(r))
	}
	l.schemas = append(l.schemas, expandSchema())
	return l, nil
}

// Params returns the library's parameters.
func (l *Library) Params() Params { return l.params.Clone() }

// Successors returns every applicable operator instance for s, in
// enumeration order, paired with the resulting fact set.
func (l *Library) Successors(s fact.Set) []Transition {
	v := decode(s)
	var out []Transition
	for _, sc := range l.schemas {
		for _, op := range sc.ground(l, v) {
			if !sc.pre(l, v, op) {
				continue
			}
			del, add := sc.effects(l, v, op)
			out = append(out, Transition{Op: op, Next: s.Apply(del, add)})
		}
	}
	return out
}

// Apply applies op to s, failing with ErrNotApplicable if its precondition
// does not hold.
func (l *Library) Apply(op Operator, s fact.Set) (fact.Set, error) {
	v := decode(s)
	for _, sc := range l.schemas {
		if sc.Kind != op.Kind || sc.Resource != op.Resource {
			continue
		}
		if !l.wellFormed(op) || !sc.pre(l, v, op) {
			return fact.Set{}, fmt.Errorf("%w: %s", ErrNotApplicable, op)
		}
		del, add := sc.effects(l, v, op)
		return s.Apply(del, add), nil
	}
	return fact.Set{}, fmt.Errorf("%w: unknown operator %s", ErrNotApplicable, op)
}

func (l *Library) wellFormed(op Operator) bool {
	if op.Kind == ExpandWorkforce {
		return len(op.Participants) == 0
	}
	if len(op.Participants) == 0 || len(op.Participants) > l.params.MaxParticipants {
		return false
	}
	for i := 1; i < len(op.Participants); i++ {
		if op.Participants[i] <= op.Participants[i-1] {
			return false
		}
	}
	return true
}

// nextEntity is the id ExpandWorkforce allocates from v.
func (l *Library) nextEntity(v *view) int {
	id := l.floorID
	if n := len(v.workers); n > 0 {
		id = max(id, v.workers[n-1])
	}
	return id + 1
}

// outstanding is how much of r is still missing from the base.
func (l *Library) outstanding(v *view, r world.Resource) int {
	return max(0, l.params.Target(r)-v.stock[r])
}

func (l *Library) expandAllowed(v *view) bool {
	if l.expand == nil {
		return true
	}
	env := ExpandEnv{
		Gold:       v.stock[world.Gold],
		Wood:       v.stock[world.Wood],
		Workforce:  v.workforce,
		TargetGold: l.params.Target(world.Gold),
		TargetWood: l.params.Target(world.Wood),
		ExpandCost: l.params.ExpandCost,
	}
	result, err := expr.Run(l.expand, env)
	if err != nil {
		slog.Warn("[domain] expand-when evaluation failed", "expression", l.params.ExpandWhen, "error", err)
		return false
	}
	b, _ := result.(bool)
	return b
}

func gotoResourceSchema(r world.Resource) Schema {
	return Schema{
		Kind:     GotoResource,
		Resource: r,
		ground: func(l *Library, v *view) []Operator {
			eligible := v.filter(func(id int) bool {
				return v.home[id] && !v.holding(id, r)
			})
			return l.instances(GotoResource, r, 0, eligible)
		},
		pre: func(l *Library, v *view, op Operator) bool {
			for _, p := range op.Participants {
				if !v.home[p] || v.holding(p, r) {
					return false
				}
			}
			needed := ceilDiv(l.outstanding(v, r), l.params.GatherUnit)
			return v.committed(r)+len(op.Participants) <= needed
		},
		effects: func(l *Library, v *view, op Operator) (del, add []fact.Literal) {
			for _, p := range op.Participants {
				del = append(del, fact.AtHome(p))
				if pos, ok := v.pos[p]; ok {
					del = append(del, fact.At(p, pos))
				}
				add = append(add, fact.AtResource(p, r))
			}
			return del, add
		},
	}
}

func gotoHomeSchema() Schema {
	return Schema{
		Kind: GotoHome,
		ground: func(l *Library, v *view) []Operator {
			eligible := v.filter(func(id int) bool {
				_, at := v.atRes[id]
				return at && v.loaded(id, l.params.GatherUnit)
			})
			return l.instances(GotoHome, "", 0, eligible)
		},
		pre: func(l *Library, v *view, op Operator) bool {
			for _, p := range op.Participants {
				if _, at := v.atRes[p]; !at || !v.loaded(p, l.params.GatherUnit) {
					return false
				}
			}
			return true
		},
		effects: func(l *Library, v *view, op Operator) (del, add []fact.Literal) {
			for _, p := range op.Participants {
				del = append(del, fact.AtResource(p, v.atRes[p]))
				if pos, ok := v.pos[p]; ok {
					del = append(del, fact.At(p, pos))
				}
				add = append(add, fact.AtHome(p))
			}
			return del, add
		},
	}
}

func gatherSchema(r world.Resource) Schema {
	ready := func(v *view, id int) bool {
		kind, at := v.atRes[id]
		_, loaded := v.holds[id]
		return at && kind == r && !loaded
	}
	return Schema{
		Kind:     Gather,
		Resource: r,
		ground: func(l *Library, v *view) []Operator {
			return l.instances(Gather, r, l.params.GatherUnit, v.filter(func(id int) bool { return ready(v, id) }))
		},
		pre: func(l *Library, v *view, op Operator) bool {
			if op.Amount != l.params.GatherUnit {
				return false
			}
			for _, p := range op.Participants {
				if !ready(v, p) {
					return false
				}
			}
			return true
		},
		effects: func(l *Library, v *view, op Operator) (del, add []fact.Literal) {
			for _, p := range op.Participants {
				add = append(add, fact.Holds(p, r, op.Amount))
			}
			return nil, add
		},
	}
}

func depositSchema(r world.Resource) Schema {
	ready := func(l *Library, v *view, id int) bool {
		return v.home[id] && v.holds[id] == fact.Holds(id, r, l.params.GatherUnit)
	}
	return Schema{
		Kind:     Deposit,
		Resource: r,
		ground: func(l *Library, v *view) []Operator {
			return l.instances(Deposit, r, l.params.GatherUnit, v.filter(func(id int) bool { return ready(l, v, id) }))
		},
		pre: func(l *Library, v *view, op Operator) bool {
			if op.Amount != l.params.GatherUnit {
				return false
			}
			for _, p := range op.Participants {
				if !ready(l, v, p) {
					return false
				}
			}
			return true
		},
		effects: func(l *Library, v *view, op Operator) (del, add []fact.Literal) {
			for _, p := range op.Participants {
				del = append(del, v.holds[p])
			}
			stock := v.stock[r]
			del = append(del, fact.BaseStock(r, stock))
			add = append(add, fact.BaseStock(r, stock+len(op.Participants)*op.Amount))
			return del, add
		},
	}
}

func expandSchema() Schema {
	return Schema{
		Kind: ExpandWorkforce,
		ground: func(l *Library, v *view) []Operator {
			return []Operator{{
				Kind:      ExpandWorkforce,
				Amount:    l.params.ExpandCost,
				NewEntity: l.nextEntity(v),
			}}
		},
		pre: func(l *Library, v *view, op Operator) bool {
			return op.Amount == l.params.ExpandCost &&
				op.NewEntity == l.nextEntity(v) &&
				v.stock[world.Gold] >= l.params.ExpandCost &&
				v.workforce < l.params.MaxWorkforce &&
				l.expandAllowed(v)
		},
		effects: func(l *Library, v *view, op Operator) (del, add []fact.Literal) {
			gold := v.stock[world.Gold]
			del = []fact.Literal{
				fact.BaseStock(world.Gold, gold),
				fact.WorkforceSize(v.workforce),
			}
			add = []fact.Literal{
				fact.BaseStock(world.Gold, gold-op.Amount),
				fact.WorkforceSize(v.workforce + 1),
				fact.AtHome(op.NewEntity),
			}
			return del, add
		},
	}
}

// instances enumerates every non-empty participant subset of eligible, up
// to MaxParticipants, by size and then lexicographically.
func (l *Library) instances(kind OpKind, r world.Resource, amount int, eligible []int) []Operator {
	var out []Operator
	for size := 1; size <= min(l.params.MaxParticipants, len(eligible)); size++ {
		combinations(eligible, size, func(c []int) {
			out = append(out, Operator{
				Kind:         kind,
				Participants: slices.Clone(c),
				Resource:     r,
				Amount:       amount,
			})
		})
	}
	return out
}

func combinations(ids []int, size int, yield func([]int)) {
	buf := make([]int, 0, size)
	var rec func(start int)
	rec = func(start int) {
		if len(buf) == size {
			yield(buf)
			return
		}
		for i := start; i <= len(ids)-(size-len(buf)); i++ {
			buf = append(buf, ids[i])
			rec(i + 1)
			buf = buf[:len(buf)-1]
		}
	}
	rec(0)
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
