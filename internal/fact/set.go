package fact

import (
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Set is an immutable, canonically ordered set of literals. The zero value is
// the empty set. Sets are compared by content: two sets built from the same
// literals in any order are Equal and share Key and Hash.
type Set struct {
	lits []Literal
	key  string
	hash uint64
}

// NewSet returns the set of the given literals, deduplicated.
func NewSet(lits ...Literal) Set {
	s := slices.Clone(lits)
	slices.SortFunc(s, Compare)
	s = slices.Compact(s)
	return build(s)
}

func build(sorted []Literal) Set {
	if len(sorted) == 0 {
		return Set{}
	}
	var sb strings.Builder
	for i, l := range sorted {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(l.String())
	}
	key := sb.String()
	return Set{lits: sorted, key: key, hash: xxhash.Sum64String(key)}
}

// Len returns the number of literals.
func (s Set) Len() int { return len(s.lits) }

// Contains reports whether l is in the set.
func (s Set) Contains(l Literal) bool {
	_, ok := slices.BinarySearchFunc(s.lits, l, Compare)
	return ok
}

// Literals returns a copy of the literals in canonical order.
func (s Set) Literals() []Literal { return slices.Clone(s.lits) }

// All iterates the literals in canonical order.
func (s Set) All(yield func(Literal) bool) {
	for _, l := range s.lits {
		if !yield(l) {
			return
		}
	}
}

// Key returns the canonical encoding of the set.
func (s Set) Key() string { return s.key }

// Hash returns the 64-bit xxhash of Key.
func (s Set) Hash() uint64 { return s.hash }

// Equal reports whether s and o hold the same literals.
func (s Set) Equal(o Set) bool {
	return s.hash == o.hash && s.key == o.key
}

// Apply returns (s − del) ∪ add. s is not modified.
func (s Set) Apply(del, add []Literal) Set {
	out := make([]Literal, 0, len(s.lits)+len(add))
	for _, l := range s.lits {
		if !slices.Contains(del, l) {
			out = append(out, l)
		}
	}
	out = append(out, add...)
	slices.SortFunc(out, Compare)
	return build(slices.Compact(out))
}

// Filter returns the literals of kind k in canonical order.
func (s Set) Filter(k Kind) []Literal {
	lo, _ := slices.BinarySearchFunc(s.lits, k, func(l Literal, k Kind) int {
		return int(l.Kind) - int(k)
	})
	hi := lo
	for hi < len(s.lits) && s.lits[hi].Kind == k {
		hi++
	}
	return slices.Clone(s.lits[lo:hi])
}

// Entities returns the distinct mobile entity ids referenced by the set,
// ascending.
func (s Set) Entities() []int {
	var ids []int
	for _, l := range s.lits {
		if l.HasEntity() {
			ids = append(ids, l.Entity)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (s Set) String() string {
	return "{" + s.key + "}"
}
