// Package fact implements the closed-world fact representation: a small
// tagged union of ground literals and an immutable canonical set of them.
package fact

import (
	"cmp"
	"fmt"

	"github.com/joeycumines/harvest/internal/world"
)

// Kind tags a Literal.
type Kind uint8

const (
	KindAt Kind = iota + 1
	KindAtResource
	KindAtHome
	KindHolds
	KindBaseStock
	KindWorkforceSize
)

var kindNames = [...]string{
	KindAt:            "At",
	KindAtResource:    "AtResource",
	KindAtHome:        "AtHome",
	KindHolds:         "Holds",
	KindBaseStock:     "BaseStock",
	KindWorkforceSize: "WorkforceSize",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Literal is a ground proposition. Only the fields meaningful for Kind are
// set, so two literals are the same fact iff they compare equal with ==.
type Literal struct {
	Kind     Kind
	Entity   int
	Pos      world.Point
	Resource world.Resource
	Amount   int
}

// At states that entity occupies pos.
func At(entity int, pos world.Point) Literal {
	return Literal{Kind: KindAt, Entity: entity, Pos: pos}
}

// AtResource states that entity is adjacent to the designated node of kind r.
func AtResource(entity int, r world.Resource) Literal {
	return Literal{Kind: KindAtResource, Entity: entity, Resource: r}
}

// AtHome states that entity is adjacent to the base.
func AtHome(entity int) Literal {
	return Literal{Kind: KindAtHome, Entity: entity}
}

// Holds states that entity carries amount of r.
func Holds(entity int, r world.Resource, amount int) Literal {
	return Literal{Kind: KindHolds, Entity: entity, Resource: r, Amount: amount}
}

// BaseStock states the base stockpile of r.
func BaseStock(r world.Resource, amount int) Literal {
	return Literal{Kind: KindBaseStock, Resource: r, Amount: amount}
}

// WorkforceSize states the number of mobile gathering entities.
func WorkforceSize(n int) Literal {
	return Literal{Kind: KindWorkforceSize, Amount: n}
}

// HasEntity reports whether the literal refers to a mobile entity.
func (l Literal) HasEntity() bool {
	switch l.Kind {
	case KindAt, KindAtResource, KindAtHome, KindHolds:
		return true
	}
	return false
}

func (l Literal) String() string {
	switch l.Kind {
	case KindAt:
		return fmt.Sprintf("At(%d,%d,%d)", l.Entity, l.Pos.X, l.Pos.Y)
	case KindAtResource:
		return fmt.Sprintf("AtResource(%d,%s)", l.Entity, l.Resource)
	case KindAtHome:
		return fmt.Sprintf("AtHome(%d)", l.Entity)
	case KindHolds:
		return fmt.Sprintf("Holds(%d,%s,%d)", l.Entity, l.Resource, l.Amount)
	case KindBaseStock:
		return fmt.Sprintf("BaseStock(%s,%d)", l.Resource, l.Amount)
	case KindWorkforceSize:
		return fmt.Sprintf("WorkforceSize(%d)", l.Amount)
	default:
		return l.Kind.String()
	}
}

// Compare orders literals by kind, entity, resource, amount, then position.
func Compare(a, b Literal) int {
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Entity, b.Entity); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Resource, b.Resource); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Amount, b.Amount); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Pos.X, b.Pos.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Pos.Y, b.Pos.Y)
}
