package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/joeycumines/harvest/internal/world"
)

// OpKind is an operator family.
type OpKind uint8

const (
	GotoResource OpKind = iota + 1
	GotoHome
	Gather
	Deposit
	ExpandWorkforce
)

var opKindNames = [...]string{
	GotoResource:    "GotoResource",
	GotoHome:        "GotoHome",
	Gather:          "Gather",
	Deposit:         "Deposit",
	ExpandWorkforce: "ExpandWorkforce",
}

func (k OpKind) String() string {
	if int(k) < len(opKindNames) && opKindNames[k] != "" {
		return opKindNames[k]
	}
	return "OpKind(" + strconv.Itoa(int(k)) + ")"
}

// Operator is a ground operator instance: an operator family applied to a
// list of participants, one resource kind where relevant, and, for
// ExpandWorkforce, the freshly allocated entity id.
//
// Every application costs 1, whatever the number of participants: one
// planning step models one coordinated round.
type Operator struct {
	Kind         OpKind
	Participants []int
	Resource     world.Resource
	// Amount is per participant for Gather and Deposit, and the gold spent
	// for ExpandWorkforce.
	Amount    int
	NewEntity int
}

// Cost of applying o.
func (o Operator) Cost() int { return 1 }

// Equal reports whether o and p are the same ground instance.
func (o Operator) Equal(p Operator) bool {
	return o.Kind == p.Kind &&
		o.Resource == p.Resource &&
		o.Amount == p.Amount &&
		o.NewEntity == p.NewEntity &&
		slices.Equal(o.Participants, p.Participants)
}

func (o Operator) String() string {
	var sb strings.Builder
	sb.WriteString(o.Kind.String())
	if o.Kind == ExpandWorkforce {
		fmt.Fprintf(&sb, "(%d)", o.NewEntity)
		return sb.String()
	}
	sb.WriteByte('[')
	for i, p := range o.Participants {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(p))
	}
	sb.WriteByte(']')
	if o.Resource != "" {
		fmt.Fprintf(&sb, "(%s)", o.Resource)
	}
	return sb.String()
}
