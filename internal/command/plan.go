package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/joeycumines/harvest/internal/config"
	"github.com/joeycumines/harvest/internal/domain"
	"github.com/joeycumines/harvest/internal/search"
)

// PlanCommand searches for a plan and prints its trace without executing
// it.
type PlanCommand struct {
	*BaseCommand
	config  *config.Config
	flags   episodeFlags
	trace   string
	metrics bool
	stats   bool
}

// NewPlanCommand returns the plan command.
func NewPlanCommand(cfg *config.Config) *PlanCommand {
	return &PlanCommand{
		BaseCommand: NewBaseCommand("plan", "Search for a plan and print its trace", "plan [options]"),
		config:      cfg,
	}
}

func (c *PlanCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
	fs.StringVar(&c.trace, "trace", "", "Also write the trace to this file")
	fs.BoolVar(&c.metrics, "metrics", false, "Print search metrics in the Prometheus text format")
	fs.BoolVar(&c.stats, "stats", true, "Print search statistics")
}

// Execute plans from the scenario's snapshot.
func (c *PlanCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}

	settings, err := c.flags.resolveSettings(c.config, c.Name())
	if err != nil {
		return err
	}
	tracePath := c.trace
	if tracePath == "" {
		tracePath = settings.Trace
	}
	lc, err := resolveLogConfig(c.flags.logFile, c.flags.logLevel, c.config)
	if err != nil {
		return err
	}
	defer lc.close()
	logger := lc.logger(stderr)

	sc, err := loadScenario(c.flags.scenario)
	if err != nil {
		return err
	}
	problem, err := domain.NewProblem(&sc.Snapshot, paramsFor(settings, sc))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	res, err := search.Search(context.Background(), problem, search.Options{
		MaxExpansions: settings.MaxExpansions,
		Timeout:       settings.Timeout,
		Metrics:       search.NewMetrics(reg),
		Logger:        logger,
	})
	if c.metrics {
		defer func() {
			if err := writeMetrics(stdout, reg); err != nil {
				logger.Warn("[plan] failed to write metrics", "error", err)
			}
		}()
	}
	if err != nil {
		var failure *search.PlanningFailure
		if errors.As(err, &failure) {
			_, _ = fmt.Fprintf(stdout, "No plan: %s after %d expansions\n", failure.Reason, failure.Stats.Expanded)
		}
		return err
	}

	if err := res.Plan.WriteTrace(stdout); err != nil {
		return err
	}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			return fmt.Errorf("failed to create trace file: %w", err)
		}
		werr := res.Plan.WriteTrace(f)
		if err := errors.Join(werr, f.Close()); err != nil {
			return fmt.Errorf("failed to write trace file: %w", err)
		}
	}
	if c.stats {
		s := res.Stats
		_, _ = fmt.Fprintf(stdout, "\n%d steps, cost %d, %d expanded, %d generated, %d relaxed, peak frontier %d, %s\n",
			res.Plan.Len(), res.Goal.G, s.Expanded, s.Generated, s.Relaxations, s.PeakFrontier, s.Elapsed)
	}
	return nil
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
