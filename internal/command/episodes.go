package command

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/joeycumines/harvest/internal/config"
	"github.com/joeycumines/harvest/internal/storage"
)

// EpisodesCommand inspects the episode journal.
type EpisodesCommand struct {
	*BaseCommand
	config  *config.Config
	limit   int
	asJSON  bool
	dryRun  bool
	journal string
}

// NewEpisodesCommand returns the episodes command.
func NewEpisodesCommand(cfg *config.Config) *EpisodesCommand {
	return &EpisodesCommand{
		BaseCommand: NewBaseCommand("episodes", "List, show and prune recorded episodes", "episodes [options] [list|show <id>|prune]"),
		config:      cfg,
	}
}

func (c *EpisodesCommand) SetupFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.limit, "limit", 0, "Most recent episodes to list, overrides limit")
	fs.BoolVar(&c.asJSON, "json", false, "Print episodes as JSON")
	fs.BoolVar(&c.dryRun, "dry-run", false, "Report what prune would remove without removing it")
	fs.StringVar(&c.journal, "journal", "", "Journal directory, overrides journal.dir")
}

// Execute runs the episodes subcommand; list is the default.
func (c *EpisodesCommand) Execute(args []string, stdout, stderr io.Writer) error {
	cfg := c.config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	settings, err := config.DefaultSchema().Settings(cfg, c.Name())
	if err != nil {
		return err
	}
	if c.journal != "" {
		settings.JournalDir = c.journal
	}
	if c.limit > 0 {
		settings.EpisodeLimit = c.limit
	}
	store, err := openJournal(settings)
	if err != nil {
		return err
	}

	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		return c.list(store, settings.EpisodeLimit, stdout)
	case "show":
		if len(args) != 1 {
			_, _ = fmt.Fprintln(stderr, "Usage: harvest episodes show <id>")
			return fmt.Errorf("show requires an episode id")
		}
		return c.show(store, args[0], stdout)
	case "prune":
		return c.prune(store, cfg, stdout)
	}
	_, _ = fmt.Fprintf(stderr, "Unknown subcommand: %s\n", sub)
	return fmt.Errorf("unknown subcommand: %s", sub)
}

func (c *EpisodesCommand) list(store *storage.Store, limit int, stdout io.Writer) error {
	episodes, err := store.List()
	if err != nil {
		return err
	}
	if limit > 0 && len(episodes) > limit {
		episodes = episodes[len(episodes)-limit:]
	}
	if c.asJSON {
		return writeJSON(stdout, episodes)
	}
	if len(episodes) == 0 {
		_, _ = fmt.Fprintf(stdout, "No episodes in %s\n", store.Dir())
		return nil
	}
	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tSCENARIO\tOUTCOME\tSTEPS\tTICKS")
	for _, ep := range episodes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			ep.ID, ep.StartedAt.Local().Format(time.DateTime), ep.Scenario, ep.Outcome, len(ep.Plan), ep.Ticks)
	}
	return w.Flush()
}

func (c *EpisodesCommand) show(store *storage.Store, id string, stdout io.Writer) error {
	ep, err := store.Load(id)
	if err != nil {
		return err
	}
	if c.asJSON {
		return writeJSON(stdout, ep)
	}
	_, _ = fmt.Fprintf(stdout, "Episode:  %s\n", ep.ID)
	if ep.Scenario != "" {
		_, _ = fmt.Fprintf(stdout, "Scenario: %s\n", ep.Scenario)
	}
	_, _ = fmt.Fprintf(stdout, "Outcome:  %s\n", ep.Outcome)
	if ep.Error != "" {
		_, _ = fmt.Fprintf(stdout, "Error:    %s\n", ep.Error)
	}
	_, _ = fmt.Fprintf(stdout, "Ticks:    %d\n", ep.Ticks)
	_, _ = fmt.Fprintf(stdout, "Duration: %s\n", ep.FinishedAt.Sub(ep.StartedAt).Round(time.Millisecond))
	_, _ = fmt.Fprintf(stdout, "Search:   %d expanded, %d generated, %d relaxed, %dms\n",
		ep.Search.Expanded, ep.Search.Generated, ep.Search.Relaxations, ep.Search.ElapsedMS)
	_, _ = fmt.Fprintf(stdout, "Stock:    gold %d/%d, wood %d/%d\n",
		ep.Stock["gold"], ep.Targets["gold"], ep.Stock["wood"], ep.Targets["wood"])
	_, _ = fmt.Fprintf(stdout, "\nTOTAL PLAN LENGTH: %d\n", len(ep.Plan))
	for _, line := range ep.Plan {
		_, _ = fmt.Fprintln(stdout, line)
	}
	return nil
}

func (c *EpisodesCommand) prune(store *storage.Store, cfg *config.Config, stdout io.Writer) error {
	r := retentionFor(cfg)
	if c.dryRun {
		episodes, err := store.List()
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-r.MaxAge)
		var n int
		for i, ep := range episodes {
			old := r.MaxAge > 0 && ep.StartedAt.Before(cutoff)
			excess := r.MaxCount > 0 && i < len(episodes)-r.MaxCount
			if old || excess {
				_, _ = fmt.Fprintf(stdout, "would remove %s\n", ep.ID)
				n++
			}
		}
		_, _ = fmt.Fprintf(stdout, "%d of %d episodes would be removed\n", n, len(episodes))
		return nil
	}
	report, err := store.Prune(r, time.Now())
	if err != nil {
		return err
	}
	for _, id := range report.Removed {
		_, _ = fmt.Fprintf(stdout, "removed %s\n", id)
	}
	_, _ = fmt.Fprintf(stdout, "Removed %d, kept %d\n", len(report.Removed), report.Kept)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
