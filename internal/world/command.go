package world

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Verb names a primitive command understood by the environment.
type Verb string

const (
	Move    Verb = "move"
	Gather  Verb = "gather"
	Deposit Verb = "deposit"
	Produce Verb = "produce"
)

// UnitWorker is the only unit kind a base can produce.
const UnitWorker = "worker"

// Command is one primitive instruction for a single entity. Which fields are
// meaningful depends on Verb: Pos for Move, Target for Gather (node id) and
// Deposit (base id), Unit for Produce.
type Command struct {
	Verb   Verb
	Pos    Point
	Target int
	Unit   string
}

// MoveToward builds a move-toward(position) command.
func MoveToward(p Point) Command { return Command{Verb: Move, Pos: p} }

// GatherFrom builds a gather(resourceNodeId) command.
func GatherFrom(node int) Command { return Command{Verb: Gather, Target: node} }

// DepositAt builds a deposit(baseId) command.
func DepositAt(base int) Command { return Command{Verb: Deposit, Target: base} }

// ProduceUnit builds a produce(unitKind) command.
func ProduceUnit(kind string) Command { return Command{Verb: Produce, Unit: kind} }

func (c Command) String() string {
	switch c.Verb {
	case Move:
		return fmt.Sprintf("move-toward%s", c.Pos)
	case Gather, Deposit:
		return fmt.Sprintf("%s(%d)", c.Verb, c.Target)
	case Produce:
		return fmt.Sprintf("produce(%s)", c.Unit)
	default:
		return fmt.Sprintf("%s?", string(c.Verb))
	}
}

// Batch maps entity ids to the single command issued to each this round.
type Batch map[int]Command

// Put records cmd for id, failing if id already has a command this round.
func (b Batch) Put(id int, cmd Command) error {
	if prev, ok := b[id]; ok {
		return fmt.Errorf("entity %d already commanded this round (%s, then %s)", id, prev, cmd)
	}
	b[id] = cmd
	return nil
}

// String renders the batch in ascending id order.
func (b Batch) String() string {
	if len(b) == 0 {
		return "{}"
	}
	var sb strings.Builder
	sb.WriteByte('{')
	for i, id := range slices.Sorted(maps.Keys(b)) {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d: %s", id, b[id])
	}
	sb.WriteByte('}')
	return sb.String()
}
