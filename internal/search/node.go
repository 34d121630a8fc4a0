package search

import (
	"github.com/joeycumines/harvest/internal/domain"
	"github.com/joeycumines/harvest/internal/fact"
)

type nodeState uint8

const (
	stateOpen nodeState = iota
	stateClosed
)

// Node is one search node. Nodes form a tree through Parent; two nodes are
// duplicates when their fact sets are Equal.
type Node struct {
	Set    fact.Set
	Parent *Node
	// Op produced this node from Parent. It is the zero Operator on the root.
	Op domain.Operator
	G  int
	H  int

	seq   uint64
	state nodeState
}

// F is G + H, the frontier priority.
func (n *Node) F() int { return n.G + n.H }

// Depth is the number of operators between the root and n.
func (n *Node) Depth() int {
	var d int
	for p := n.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// index maps fact sets to nodes. Buckets are keyed by Set.Hash and resolved
// with Set.Equal.
type index struct {
	buckets map[uint64][]*Node
	size    int
}

func newIndex() *index {
	return &index{buckets: make(map[uint64][]*Node)}
}

func (x *index) find(s fact.Set) *Node {
	for _, n := range x.buckets[s.Hash()] {
		if n.Set.Equal(s) {
			return n
		}
	}
	return nil
}

func (x *index) add(n *Node) {
	h := n.Set.Hash()
	x.buckets[h] = append(x.buckets[h], n)
	x.size++
}

func (x *index) remove(n *Node) {
	h := n.Set.Hash()
	bucket := x.buckets[h]
	for i, m := range bucket {
		if m == n {
			bucket = append(bucket[:i], bucket[i+1:]...)
			x.size--
			break
		}
	}
	if len(bucket) == 0 {
		delete(x.buckets, h)
	} else {
		x.buckets[h] = bucket
	}
}

func (x *index) len() int { return x.size }
