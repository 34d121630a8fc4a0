package command

import (
	"flag"
	"fmt"
	"io"

	"github.com/joeycumines/harvest/internal/domain"
)

// ScenarioCommand prints or checks scenario files.
type ScenarioCommand struct {
	*BaseCommand
	file string
}

// NewScenarioCommand returns the scenario command.
func NewScenarioCommand() *ScenarioCommand {
	return &ScenarioCommand{
		BaseCommand: NewBaseCommand("scenario", "Print the built-in scenario or check a scenario file", "scenario [options] [show|check]"),
	}
}

func (c *ScenarioCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.file, "scenario", "", "Scenario YAML file (default: built-in scenario)")
}

// Execute runs the scenario subcommand; show is the default.
func (c *ScenarioCommand) Execute(args []string, stdout, stderr io.Writer) error {
	sub := "show"
	if len(args) > 0 {
		sub = args[0]
	}
	sc, err := loadScenario(c.file)
	if err != nil {
		return err
	}
	switch sub {
	case "show":
		return sc.Encode(stdout)
	case "check":
		params := domain.DefaultParams()
		for r, v := range sc.Targets {
			params.Targets[r] = v
		}
		if _, err := domain.NewProblem(&sc.Snapshot, params); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "Scenario %q is valid: %dx%d grid, %d worker(s), %d base(s), %d node(s)\n",
			sc.Name, sc.Width, sc.Height, len(sc.Workers), len(sc.Bases), len(sc.Nodes))
		return nil
	}
	_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n", sub)
	return fmt.Errorf("unknown subcommand: %s", sub)
}
