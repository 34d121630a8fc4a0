package domain

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/harvest/internal/fact"
	"github.com/joeycumines/harvest/internal/world"
)

func snapshot(workers ...world.Unit) *world.Snapshot {
	return &world.Snapshot{
		Width:   20,
		Height:  20,
		Workers: workers,
		Bases:   []world.Base{{ID: 10, Pos: world.Pt(5, 5)}},
		Nodes: []world.Node{
			{ID: 20, Kind: world.Gold, Pos: world.Pt(15, 5), Remaining: 1000},
			{ID: 21, Kind: world.Wood, Pos: world.Pt(5, 15), Remaining: 1000},
		},
	}
}

func worker(id, x, y int) world.Unit {
	return world.Unit{ID: id, Pos: world.Pt(x, y)}
}

func mustProblem(t *testing.T, snap *world.Snapshot, params Params) *Problem {
	t.Helper()
	p, err := NewProblem(snap, params)
	require.NoError(t, err)
	return p
}

func ops(ts []Transition) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Op.String()
	}
	return out
}

func TestNewProblemFacts(t *testing.T) {
	snap := snapshot(
		worker(1, 6, 6),
		world.Unit{ID: 2, Pos: world.Pt(14, 4), Cargo: world.Cargo{Kind: world.Gold, Amount: 37}},
		worker(3, 5, 14),
	)
	snap.Bases[0].Stock = map[world.Resource]int{world.Gold: 300}

	p := mustProblem(t, snap, DefaultParams())
	want := fact.NewSet(
		fact.At(1, world.Pt(6, 6)), fact.AtHome(1),
		fact.At(2, world.Pt(14, 4)), fact.AtResource(2, world.Gold), fact.Holds(2, world.Gold, 100),
		fact.At(3, world.Pt(5, 14)), fact.AtResource(3, world.Wood),
		fact.BaseStock(world.Gold, 300), fact.BaseStock(world.Wood, 0),
		fact.WorkforceSize(3),
	)
	assert.Equal(t, want.Key(), p.Initial().Key())
	assert.Equal(t, []fact.Literal{fact.BaseStock(world.Gold, 200), fact.BaseStock(world.Wood, 200)}, p.Goal())
	assert.Equal(t, 10, p.Base().ID)
}

func TestNewProblemMissingEntity(t *testing.T) {
	_, err := NewProblem(snapshot(), DefaultParams())
	assert.ErrorIs(t, err, ErrMissingEntity)
	assert.ErrorContains(t, err, "no workers")

	snap := snapshot(worker(1, 0, 0))
	snap.Bases = nil
	_, err = NewProblem(snap, DefaultParams())
	assert.ErrorIs(t, err, ErrMissingEntity)
	assert.ErrorContains(t, err, "no base")

	_, err = NewProblem(nil, DefaultParams())
	assert.ErrorIs(t, err, ErrMissingEntity)
}

func TestParamsValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Params){
		"gather unit":  func(p *Params) { p.GatherUnit = 0 },
		"expand cost":  func(p *Params) { p.ExpandCost = -1 },
		"participants": func(p *Params) { p.MaxParticipants = 0 },
		"workforce":    func(p *Params) { p.MaxWorkforce = -1 },
		"target":       func(p *Params) { p.Targets[world.Wood] = -5 },
		"resource":     func(p *Params) { p.Targets["stone"] = 5 },
		"expression":   func(p *Params) { p.ExpandWhen = "gold >" },
		"non-boolean":  func(p *Params) { p.ExpandWhen = "gold + 1" },
	} {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
			_, err := NewProblem(snapshot(worker(1, 6, 6)), p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
	assert.NoError(t, DefaultParams().Validate())
}

func TestSuccessorOrder(t *testing.T) {
	p := mustProblem(t, snapshot(worker(1, 6, 6), worker(2, 4, 4)), DefaultParams())
	assert.Equal(t, []string{
		"GotoResource[1](gold)", "GotoResource[2](gold)", "GotoResource[1,2](gold)",
		"GotoResource[1](wood)", "GotoResource[2](wood)", "GotoResource[1,2](wood)",
	}, ops(p.Successors(p.Initial())))
}

func TestGotoResourcePruning(t *testing.T) {
	snap := snapshot(worker(1, 6, 6), worker(2, 4, 4))
	params := DefaultParams()
	params.Targets[world.Gold] = 100
	params.Targets[world.Wood] = 0
	p := mustProblem(t, snap, params)

	assert.Equal(t, []string{"GotoResource[1](gold)", "GotoResource[2](gold)"}, ops(p.Successors(p.Initial())),
		"one trip covers the gold target and wood is not needed")

	next, err := p.Apply(Operator{Kind: GotoResource, Participants: []int{1}, Resource: world.Gold}, p.Initial())
	require.NoError(t, err)
	for _, tr := range p.Successors(next) {
		assert.NotEqual(t, GotoResource, tr.Op.Kind, "gold already has a worker committed")
	}
}

func TestRoundTrip(t *testing.T) {
	p := mustProblem(t, snapshot(worker(1, 6, 6)), DefaultParams())
	s := p.Initial()
	steps := []Operator{
		{Kind: GotoResource, Participants: []int{1}, Resource: world.Gold},
		{Kind: Gather, Participants: []int{1}, Resource: world.Gold, Amount: 100},
		{Kind: GotoHome, Participants: []int{1}},
		{Kind: Deposit, Participants: []int{1}, Resource: world.Gold, Amount: 100},
	}
	for _, op := range steps {
		var err error
		s, err = p.Apply(op, s)
		require.NoError(t, err, op.String())
	}
	assert.Equal(t, fact.NewSet(
		fact.AtHome(1),
		fact.BaseStock(world.Gold, 100), fact.BaseStock(world.Wood, 0),
		fact.WorkforceSize(1),
	).Key(), s.Key())
	assert.Equal(t, 12, p.Heuristic(s))
}

func TestApplyRejects(t *testing.T) {
	p := mustProblem(t, snapshot(worker(1, 6, 6)), DefaultParams())
	for _, op := range []Operator{
		{Kind: Gather, Participants: []int{1}, Resource: world.Gold, Amount: 100},
		{Kind: GotoHome, Participants: []int{1}},
		{Kind: Deposit, Participants: []int{1}, Resource: world.Wood, Amount: 100},
		{Kind: GotoResource, Participants: []int{7}, Resource: world.Gold},
		{Kind: GotoResource, Participants: nil, Resource: world.Gold},
		{Kind: GotoResource, Participants: []int{1, 1}, Resource: world.Gold},
		{Kind: ExpandWorkforce, Amount: 400, NewEntity: 22},
		{Kind: OpKind(99)},
	} {
		_, err := p.Apply(op, p.Initial())
		assert.ErrorIs(t, err, ErrNotApplicable, op.String())
	}
}

func TestExpandWorkforce(t *testing.T) {
	snap := snapshot(worker(1, 6, 6))
	snap.Bases[0].Stock = map[world.Resource]int{world.Gold: 400}
	params := DefaultParams()
	params.Targets[world.Gold] = 1000
	p := mustProblem(t, snap, params)

	var expand *Transition
	for _, tr := range p.Successors(p.Initial()) {
		if tr.Op.Kind == ExpandWorkforce {
			expand = &tr
		}
	}
	require.NotNil(t, expand)
	assert.Equal(t, 22, expand.Op.NewEntity, "one past the largest id in the snapshot")

	before, after := p.Initial(), expand.Next
	assert.True(t, after.Contains(fact.WorkforceSize(2)))
	assert.False(t, after.Contains(fact.WorkforceSize(1)))
	assert.True(t, after.Contains(fact.BaseStock(world.Gold, 0)))

	var fresh []fact.Literal
	for _, l := range after.Filter(fact.KindAtHome) {
		if !before.Contains(l) {
			fresh = append(fresh, l)
		}
	}
	assert.Equal(t, []fact.Literal{fact.AtHome(22)}, fresh)
	assert.NotContains(t, before.Entities(), 22)

	t.Run("capped by max workforce", func(t *testing.T) {
		params := params.Clone()
		params.MaxWorkforce = 1
		p := mustProblem(t, snap, params)
		for _, tr := range p.Successors(p.Initial()) {
			assert.NotEqual(t, ExpandWorkforce, tr.Op.Kind)
		}
	})

	t.Run("guarded by expression", func(t *testing.T) {
		params := params.Clone()
		params.ExpandWhen = "gold >= expandCost * 2"
		p := mustProblem(t, snap, params)
		for _, tr := range p.Successors(p.Initial()) {
			assert.NotEqual(t, ExpandWorkforce, tr.Op.Kind)
		}
		params.ExpandWhen = "workforce < 2 && targetGold > gold"
		p = mustProblem(t, snap, params)
		assert.Contains(t, ops(p.Successors(p.Initial())), "ExpandWorkforce(22)")
	})
}

func TestHeuristicBounds(t *testing.T) {
	p := mustProblem(t, snapshot(worker(1, 6, 6)), DefaultParams())
	assert.Equal(t, 16, p.Heuristic(p.Initial()))
	assert.False(t, p.Satisfied(p.Initial()))

	goal := fact.NewSet(fact.AtHome(1), fact.BaseStock(world.Gold, 300), fact.BaseStock(world.Wood, 200), fact.WorkforceSize(1))
	assert.True(t, p.Satisfied(goal), "stock above target still satisfies")
	assert.Zero(t, p.Heuristic(goal))

	// breadth-first sweep of the reachable space
	seen := map[string]bool{p.Initial().Key(): true}
	queue := []fact.Set{p.Initial()}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		h := p.Heuristic(s)
		assert.GreaterOrEqual(t, h, 0)
		assert.Equal(t, p.Satisfied(s), h == 0, s.String())
		for _, tr := range p.Successors(s) {
			if !seen[tr.Next.Key()] {
				seen[tr.Next.Key()] = true
				queue = append(queue, tr.Next)
			}
		}
	}
	assert.Greater(t, len(seen), 16)
}

func TestTwoWorkerDeposit(t *testing.T) {
	snap := snapshot(
		world.Unit{ID: 1, Pos: world.Pt(6, 6), Cargo: world.Cargo{Kind: world.Gold, Amount: 100}},
		world.Unit{ID: 2, Pos: world.Pt(4, 4), Cargo: world.Cargo{Kind: world.Gold, Amount: 100}},
	)
	p := mustProblem(t, snap, DefaultParams())
	op := Operator{Kind: Deposit, Participants: []int{1, 2}, Resource: world.Gold, Amount: 100}
	next, err := p.Apply(op, p.Initial())
	require.NoError(t, err)
	assert.True(t, next.Contains(fact.BaseStock(world.Gold, 200)))
	assert.Empty(t, next.Filter(fact.KindHolds))
	assert.Equal(t, "Deposit 200 Gold", TraceLine(op))
}

func TestPlanTraceAndReplay(t *testing.T) {
	p := mustProblem(t, snapshot(worker(1, 6, 6)), DefaultParams())
	plan := Plan{
		{Kind: GotoResource, Participants: []int{1}, Resource: world.Wood},
		{Kind: Gather, Participants: []int{1}, Resource: world.Wood, Amount: 100},
		{Kind: GotoHome, Participants: []int{1}},
		{Kind: Deposit, Participants: []int{1}, Resource: world.Wood, Amount: 100},
	}
	final, err := plan.Replay(p)
	require.NoError(t, err)
	assert.True(t, final.Contains(fact.BaseStock(world.Wood, 100)))

	var buf bytes.Buffer
	require.NoError(t, plan.WriteTrace(&buf))
	assert.Equal(t, "TOTAL PLAN LENGTH: 4\nGoto Wood\nGather 100 Wood\nGoto Home\nDeposit 100 Wood\n", buf.String())
	assert.Equal(t, "Expand Workforce", TraceLine(Operator{Kind: ExpandWorkforce}))

	_, err = append(Plan{plan[1]}, plan...).Replay(p)
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.ErrorContains(t, err, "step 1")
}
