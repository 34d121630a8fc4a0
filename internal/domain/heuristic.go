package domain

import (
	"github.com/joeycumines/harvest/internal/fact"
	"github.com/joeycumines/harvest/internal/world"
)

// tripLength is the number of operators in one round trip: goto-resource,
// gather, goto-home, deposit.
const tripLength = 4

// Heuristic estimates the number of operator applications left before s
// satisfies the goal. For each resource kind with an outstanding amount it
// counts ceil(outstanding / (workforce × GatherUnit)) round trips of
// tripLength operators, less one when some worker is already at a node of
// that kind or carrying it.
//
// The estimate is a best-first guide; it is not admissible in every state
// and plans are not claimed to be optimal. It is zero exactly when s
// satisfies the goal.
func (p *Problem) Heuristic(s fact.Set) int {
	v := decode(s)
	workforce := max(1, v.workforce)
	var h int
	for _, r := range world.Resources {
		out := max(0, p.params.Target(r)-v.stock[r])
		if out == 0 {
			continue
		}
		cost := tripLength * ceilDiv(out, workforce*p.params.GatherUnit)
		if v.committed(r) > 0 {
			cost--
		}
		h += cost
	}
	return h
}
