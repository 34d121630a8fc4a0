package domain

import (
	"github.com/joeycumines/harvest/internal/fact"
	"github.com/joeycumines/harvest/internal/world"
)

// view is a fact set decoded into per-entity lookups.
type view struct {
	workers   []int
	home      map[int]bool
	atRes     map[int]world.Resource
	holds     map[int]fact.Literal
	pos       map[int]world.Point
	stock     map[world.Resource]int
	workforce int
}

func decode(s fact.Set) *view {
	v := &view{
		workers: s.Entities(),
		home:    make(map[int]bool),
		atRes:   make(map[int]world.Resource),
		holds:   make(map[int]fact.Literal),
		pos:     make(map[int]world.Point),
		stock:   make(map[world.Resource]int),
	}
	v.workforce = len(v.workers)
	for l := range s.All {
		switch l.Kind {
		case fact.KindAt:
			v.pos[l.Entity] = l.Pos
		case fact.KindAtResource:
			v.atRes[l.Entity] = l.Resource
		case fact.KindAtHome:
			v.home[l.Entity] = true
		case fact.KindHolds:
			if l.Amount > 0 {
				v.holds[l.Entity] = l
			}
		case fact.KindBaseStock:
			v.stock[l.Resource] = l.Amount
		case fact.KindWorkforceSize:
			v.workforce = l.Amount
		}
	}
	return v
}

func (v *view) filter(keep func(id int) bool) []int {
	var out []int
	for _, id := range v.workers {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func (v *view) holding(id int, r world.Resource) bool {
	h, ok := v.holds[id]
	return ok && h.Resource == r
}

func (v *view) loaded(id int, unit int) bool {
	h, ok := v.holds[id]
	return ok && h.Amount == unit
}

// committed counts workers already working on r: standing at a node of r or
// carrying it.
func (v *view) committed(r world.Resource) int {
	var n int
	for _, id := range v.workers {
		if v.atRes[id] == r || v.holding(id, r) {
			n++
		}
	}
	return n
}
