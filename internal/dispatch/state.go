package dispatch

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	bt "github.com/joeycumines/go-behaviortree"
	pabt "github.com/joeycumines/go-pabt"
)

// debugDispatch enables condition and action tracing. Set
// HARVEST_DEBUG_DISPATCH=1.
var debugDispatch = os.Getenv("HARVEST_DEBUG_DISPATCH") == "1"

// Condition keys evaluated against the live snapshot.
const (
	// keyResolvable: every participant has a live target.
	keyResolvable = "resolvable"
	// keyAdjacent: every participant is adjacent to its live target.
	keyAdjacent = "adjacent"
	// keyDone: the operator's effect is observed.
	keyDone = "done"
)

var _ pabt.IState = (*state)(nil)

// state is the PA-BT view of one plan step. Variables are computed by
// sensors on demand and recorded on the blackboard.
type state struct {
	board   *Blackboard
	sensors map[string]func() bool
	actions *actionRegistry
}

func newState(board *Blackboard, sensors map[string]func() bool) *state {
	return &state{
		board:   board,
		sensors: sensors,
		actions: newActionRegistry(),
	}
}

// Variable implements pabt.IState.
func (s *state) Variable(key any) (any, error) {
	name, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("unsupported key type: %T", key)
	}
	sensor, ok := s.sensors[name]
	if !ok {
		return nil, fmt.Errorf("unknown condition key %q", name)
	}
	value := sensor()
	s.board.Set(name, value)
	if debugDispatch {
		slog.Debug("[dispatch] variable", "key", name, "value", value)
	}
	return value, nil
}

// Actions implements pabt.IState. It returns the registered actions with an
// effect that satisfies failed.
func (s *state) Actions(failed pabt.Condition) ([]pabt.IAction, error) {
	all := s.actions.all()
	if failed == nil {
		return all, nil
	}
	var relevant []pabt.IAction
	for _, a := range all {
		for _, e := range a.Effects() {
			if e != nil && e.Key() == failed.Key() && failed.Match(e.Value()) {
				relevant = append(relevant, a)
				break
			}
		}
	}
	if debugDispatch {
		slog.Debug("[dispatch] actions", "failed", failed.Key(), "relevant", len(relevant))
	}
	return relevant, nil
}

// actionRegistry returns actions sorted by name, so planning is
// reproducible.
type actionRegistry struct {
	actions map[string]*action
}

func newActionRegistry() *actionRegistry {
	return &actionRegistry{actions: make(map[string]*action)}
}

func (r *actionRegistry) register(a *action) {
	r.actions[a.name] = a
}

func (r *actionRegistry) all() []pabt.IAction {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]pabt.IAction, 0, len(names))
	for _, name := range names {
		out = append(out, r.actions[name])
	}
	return out
}

// action implements pabt.IAction.
type action struct {
	name       string
	conditions []pabt.IConditions
	effects    pabt.Effects
	node       bt.Node
}

func newAction(name string, pre []string, effect string, tick bt.Tick) *action {
	if tick == nil {
		panic(fmt.Sprintf("dispatch: action %s has no tick", name))
	}
	var group pabt.IConditions
	for _, key := range pre {
		group = append(group, holds(key))
	}
	var conditions []pabt.IConditions
	if len(group) > 0 {
		conditions = []pabt.IConditions{group}
	}
	return &action{
		name:       name,
		conditions: conditions,
		effects:    pabt.Effects{&achieves{key: effect}},
		node:       bt.New(tick),
	}
}

func (a *action) Conditions() []pabt.IConditions { return a.conditions }
func (a *action) Effects() pabt.Effects          { return a.effects }
func (a *action) Node() bt.Node                  { return a.node }

// truth is a condition satisfied when its variable is true.
type truth struct {
	key string
}

func holds(key string) *truth { return &truth{key: key} }

func (c *truth) Key() any { return c.key }

func (c *truth) Match(value any) bool {
	b, _ := value.(bool)
	return b
}

// achieves is an effect setting its variable to true.
type achieves struct {
	key string
}

func (e *achieves) Key() any   { return e.key }
func (e *achieves) Value() any { return true }
