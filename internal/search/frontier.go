package search

import (
	"cmp"

	"github.com/emirpasic/gods/queues/priorityqueue"

	"github.com/joeycumines/harvest/internal/fact"
)

// entry is a queued reference to a node. A node re-queued after relaxation
// leaves its older entry behind; pop recognises and skips it because the
// recorded f no longer matches.
type entry struct {
	node *Node
	f    int
	seq  uint64
}

// frontier holds unexpanded nodes ordered by f, then by the order in which
// each node was first inserted.
type frontier struct {
	queue   *priorityqueue.Queue
	members *index
	nextSeq uint64
}

func newFrontier() *frontier {
	return &frontier{
		queue: priorityqueue.NewWith(func(a, b any) int {
			x, y := a.(entry), b.(entry)
			if c := cmp.Compare(x.f, y.f); c != 0 {
				return c
			}
			return cmp.Compare(x.seq, y.seq)
		}),
		members: newIndex(),
	}
}

// push inserts a new node.
func (q *frontier) push(n *Node) {
	n.seq = q.nextSeq
	q.nextSeq++
	n.state = stateOpen
	q.members.add(n)
	q.queue.Enqueue(entry{node: n, f: n.F(), seq: n.seq})
}

// requeue re-prioritises n after its G decreased. It keeps its original
// sequence number.
func (q *frontier) requeue(n *Node) {
	q.queue.Enqueue(entry{node: n, f: n.F(), seq: n.seq})
}

// pop removes and returns the node with minimum f. The node leaves the
// frontier for good.
func (q *frontier) pop() (*Node, bool) {
	for {
		v, ok := q.queue.Dequeue()
		if !ok {
			return nil, false
		}
		e := v.(entry)
		if e.node.state != stateOpen || e.f != e.node.F() {
			continue
		}
		q.members.remove(e.node)
		e.node.state = stateClosed
		return e.node, true
	}
}

// find returns the open node whose fact set equals s.
func (q *frontier) find(s fact.Set) *Node {
	return q.members.find(s)
}

func (q *frontier) len() int { return q.members.len() }
