// Package domain is the gather-deposit-expand planning domain: the fact
// store that abstracts a world snapshot into literals, the operator library,
// the goal test, and the heuristic that guides search.
package domain

import (
	"errors"
	"fmt"
	"maps"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/harvest/internal/world"
)

var (
	// ErrMissingEntity is returned when a snapshot lacks a base or any
	// worker. It is fatal for the episode.
	ErrMissingEntity = errors.New("missing required entity")

	// ErrInvalidParams is returned for unusable planner parameters.
	ErrInvalidParams = errors.New("invalid planner parameters")

	// ErrNotApplicable is returned when an operator's precondition does not
	// hold against the fact set it is applied to.
	ErrNotApplicable = errors.New("operator not applicable")
)

const (
	DefaultGatherUnit      = 100
	DefaultExpandCost      = 400
	DefaultTarget          = 200
	DefaultMaxWorkforce    = 3
	DefaultMaxParticipants = 3
)

// Params are the fixed quantities of a planning episode.
type Params struct {
	// GatherUnit is the amount obtained by one gather.
	GatherUnit int
	// ExpandCost is the gold spent to produce one worker.
	ExpandCost int
	// Targets is the stockpile to reach per resource kind. Missing kinds
	// have a target of zero.
	Targets map[world.Resource]int
	// MaxWorkforce caps ExpandWorkforce.
	MaxWorkforce int
	// MaxParticipants caps the number of workers moved by one operator.
	MaxParticipants int
	// ExpandWhen is an optional boolean expression further guarding
	// ExpandWorkforce. See ExpandEnv for the variables in scope.
	ExpandWhen string
}

// DefaultParams returns the standard episode parameters.
func DefaultParams() Params {
	return Params{
		GatherUnit:      DefaultGatherUnit,
		ExpandCost:      DefaultExpandCost,
		Targets:         map[world.Resource]int{world.Gold: DefaultTarget, world.Wood: DefaultTarget},
		MaxWorkforce:    DefaultMaxWorkforce,
		MaxParticipants: DefaultMaxParticipants,
	}
}

// Target returns the target for r.
func (p Params) Target(r world.Resource) int {
	return p.Targets[r]
}

// Clone returns a copy that shares no maps with p.
func (p Params) Clone() Params {
	p.Targets = maps.Clone(p.Targets)
	return p
}

// Validate reports the first problem with p, wrapped in ErrInvalidParams.
func (p Params) Validate() error {
	switch {
	case p.GatherUnit <= 0:
		return fmt.Errorf("%w: gather unit must be positive, got %d", ErrInvalidParams, p.GatherUnit)
	case p.ExpandCost <= 0:
		return fmt.Errorf("%w: expand cost must be positive, got %d", ErrInvalidParams, p.ExpandCost)
	case p.MaxParticipants <= 0:
		return fmt.Errorf("%w: max participants must be positive, got %d", ErrInvalidParams, p.MaxParticipants)
	case p.MaxWorkforce < 0:
		return fmt.Errorf("%w: max workforce must not be negative, got %d", ErrInvalidParams, p.MaxWorkforce)
	}
	for r, v := range p.Targets {
		if !r.Valid() {
			return fmt.Errorf("%w: unknown resource %q", ErrInvalidParams, r)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative target for %s: %d", ErrInvalidParams, r, v)
		}
	}
	if _, err := p.compileExpandWhen(); err != nil {
		return err
	}
	return nil
}

// ExpandEnv is the environment ExpandWhen is evaluated in.
type ExpandEnv struct {
	Gold       int `expr:"gold"`
	Wood       int `expr:"wood"`
	Workforce  int `expr:"workforce"`
	TargetGold int `expr:"targetGold"`
	TargetWood int `expr:"targetWood"`
	ExpandCost int `expr:"expandCost"`
}

func (p Params) compileExpandWhen() (*vm.Program, error) {
	if p.ExpandWhen == "" {
		return nil, nil
	}
	program, err := expr.Compile(p.ExpandWhen, expr.Env(ExpandEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: expand-when expression: %w", ErrInvalidParams, err)
	}
	return program, nil
}
