package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"golang.org/x/term"

	"github.com/joeycumines/harvest/internal/agent"
	"github.com/joeycumines/harvest/internal/config"
	"github.com/joeycumines/harvest/internal/search"
	"github.com/joeycumines/harvest/internal/sim"
	"github.com/joeycumines/harvest/internal/storage"
	"github.com/joeycumines/harvest/internal/world"
)

// minTickInterval stands in for a zero tick interval; the ticker needs a
// positive period.
const minTickInterval = time.Millisecond

// RunCommand plans an episode and plays it against the grid simulator.
type RunCommand struct {
	*BaseCommand
	config   *config.Config
	flags    episodeFlags
	maxTicks int
	interval string
	noRecord bool
	quiet    bool
}

// NewRunCommand returns the run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand("run", "Plan an episode and play it in the simulator", "run [options]"),
		config:      cfg,
	}
}

func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
	fs.IntVar(&c.maxTicks, "max-ticks", 0, "Rounds before giving up, overrides max-ticks")
	fs.StringVar(&c.interval, "interval", "", "Delay between rounds, overrides tick-interval")
	fs.BoolVar(&c.noRecord, "no-record", false, "Do not save the episode to the journal")
	fs.BoolVar(&c.quiet, "quiet", false, "Suppress progress output")
}

// Execute runs one episode to completion, the tick limit, or interrupt.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return fmt.Errorf("unexpected arguments")
	}

	settings, err := c.flags.resolveSettings(c.config, c.Name())
	if err != nil {
		return err
	}
	if c.maxTicks > 0 {
		settings.MaxTicks = c.maxTicks
	}
	if c.interval != "" {
		if settings.TickInterval, err = time.ParseDuration(c.interval); err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
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
	w, err := sim.New(&sc.Snapshot, sim.Config{
		GatherUnit:  settings.GatherUnit,
		GatherTicks: settings.GatherTicks,
		WorkerCost:  settings.ExpandCost,
	})
	if err != nil {
		return err
	}
	w.SetLogger(logger)

	var journal *storage.Store
	if settings.Record && !c.noRecord {
		if journal, err = openJournal(settings); err != nil {
			return err
		}
	}

	ag, err := agent.New(paramsFor(settings, sc), agent.Options{
		Search: search.Options{
			MaxExpansions: settings.MaxExpansions,
			Timeout:       settings.Timeout,
		},
		Journal:  journal,
		Scenario: sc.Name,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var runErr error
	if err := ag.Start(ctx, w.Snapshot()); err != nil {
		if !errors.Is(err, search.ErrNoPlan) {
			return err
		}
		_, _ = fmt.Fprintf(stdout, "%v\n", err)
	} else {
		runErr = playEpisode(ctx, w, ag, settings, c.progress(stdout))
	}

	ep, err := ag.Finish(w.Snapshot(), runErr)
	if err != nil {
		logger.Warn("[run] failed to record episode", "error", err)
	}
	if ep != nil {
		_, _ = fmt.Fprintf(stdout, "Episode %s: %s after %d ticks, gold %d, wood %d\n",
			ep.ID, ep.Outcome, ep.Ticks, ep.Stock[string(world.Gold)], ep.Stock[string(world.Wood)])
	}
	if journal != nil {
		pruneAfterRun(journal, c.config, logger)
	}
	return runErr
}

// progress returns a per-round callback, or nil if stdout is not a
// terminal or output is suppressed.
func (c *RunCommand) progress(stdout io.Writer) func(*sim.World) {
	f, ok := stdout.(*os.File)
	if c.quiet || !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return func(w *sim.World) {
		_, _ = fmt.Fprintf(f, "\rtick %5d  gold %5d  wood %5d", w.Tick(), w.Stock(world.Gold), w.Stock(world.Wood))
		if w.Tick()%100 == 0 {
			_, _ = fmt.Fprint(f, "\n")
		}
	}
}

// playEpisode drives the agent against the simulator, one round per tick of
// a behavior tree ticker, until the plan is done and the simulator has no
// outstanding orders, the tick limit is reached, or ctx is canceled.
func playEpisode(ctx context.Context, w *sim.World, ag *agent.Agent, s config.Settings, progress func(*sim.World)) error {
	var runErr error
	round := bt.New(func([]bt.Node) (bt.Status, error) {
		if ag.Done() && w.Idle() {
			return bt.Failure, nil
		}
		if s.MaxTicks > 0 && ag.Ticks() >= s.MaxTicks {
			return bt.Failure, nil
		}
		batch, err := ag.Step(w.Snapshot())
		if err != nil {
			runErr = err
			return bt.Failure, nil
		}
		if err := w.Apply(batch); err != nil {
			runErr = fmt.Errorf("tick %d: %w", w.Tick(), err)
			return bt.Failure, nil
		}
		w.Step()
		if progress != nil {
			progress(w)
		}
		return bt.Success, nil
	})

	ticker := bt.NewTickerStopOnFailure(ctx, max(s.TickInterval, minTickInterval), round)
	defer ticker.Stop()
	select {
	case <-ticker.Done():
	case <-ctx.Done():
		ticker.Stop()
		<-ticker.Done()
	}
	if runErr == nil && ctx.Err() != nil && !(ag.Done() && w.Idle()) {
		runErr = ctx.Err()
	}
	return runErr
}

func pruneAfterRun(journal *storage.Store, cfg *config.Config, logger *slog.Logger) {
	if cfg != nil && !cfg.Journal.AutoPrune {
		return
	}
	report, err := journal.Prune(retentionFor(cfg), time.Now())
	switch {
	case errors.Is(err, storage.ErrWouldBlock):
		logger.Debug("[run] journal prune already in progress")
	case err != nil:
		logger.Warn("[run] journal prune failed", "error", err)
	case len(report.Removed) > 0:
		logger.Info("[run] pruned journal", "removed", len(report.Removed), "kept", report.Kept)
	}
}
