package domain

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joeycumines/harvest/internal/fact"
)

// Plan is an ordered list of operator instances.
type Plan []Operator

// Len returns the number of steps.
func (p Plan) Len() int { return len(p) }

// Replay applies every step of p to the problem's initial fact set,
// checking each precondition, and returns the final fact set.
func (p Plan) Replay(problem *Problem) (fact.Set, error) {
	s := problem.Initial()
	for i, op := range p {
		next, err := problem.Apply(op, s)
		if err != nil {
			return s, fmt.Errorf("step %d: %w", i+1, err)
		}
		s = next
	}
	return s, nil
}

// title is not shared: a Caser is stateful.
func title(s string) string {
	return cases.Title(language.Und).String(s)
}

// TraceLine renders op as one human readable line: "<Verb> <amount>
// <ResourceKind>" or "<Verb> <Target>".
func TraceLine(op Operator) string {
	switch op.Kind {
	case GotoResource:
		return "Goto " + title(string(op.Resource))
	case GotoHome:
		return "Goto Home"
	case Gather:
		return fmt.Sprintf("Gather %d %s", op.Amount*len(op.Participants), title(string(op.Resource)))
	case Deposit:
		return fmt.Sprintf("Deposit %d %s", op.Amount*len(op.Participants), title(string(op.Resource)))
	case ExpandWorkforce:
		return "Expand Workforce"
	default:
		return op.String()
	}
}

// Trace returns one TraceLine per step.
func (p Plan) Trace() []string {
	out := make([]string, len(p))
	for i, op := range p {
		out[i] = TraceLine(op)
	}
	return out
}

// WriteTrace writes the diagnostic plan trace: a length header followed by
// one line per step. It is for human inspection only.
func (p Plan) WriteTrace(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TOTAL PLAN LENGTH: %d\n", len(p))
	for _, line := range p.Trace() {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func (p Plan) String() string {
	parts := make([]string, len(p))
	for i, op := range p {
		parts[i] = op.String()
	}
	return strings.Join(parts, " -> ")
}
