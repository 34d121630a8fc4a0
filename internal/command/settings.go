package command

import (
	"flag"
	"fmt"
	"maps"
	"time"

	"github.com/joeycumines/harvest/internal/config"
	"github.com/joeycumines/harvest/internal/domain"
	"github.com/joeycumines/harvest/internal/storage"
	"github.com/joeycumines/harvest/internal/world"
)

// episodeFlags are the flags shared by commands that plan.
type episodeFlags struct {
	scenario      string
	logFile       string
	logLevel      string
	maxExpansions int
	timeout       string
}

func (f *episodeFlags) setup(fs *flag.FlagSet) {
	fs.StringVar(&f.scenario, "scenario", "", "Scenario YAML file (default: built-in scenario)")
	fs.StringVar(&f.logFile, "log-file", "", "Write JSON logs to this file")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.IntVar(&f.maxExpansions, "max-expansions", -1, "Search expansion budget, overrides planner.max-expansions")
	fs.StringVar(&f.timeout, "timeout", "", "Search time budget, overrides planner.timeout")
}

// loadScenario reads the scenario named by path, or the built-in one.
func loadScenario(path string) (*world.Scenario, error) {
	if path == "" {
		return world.DefaultScenario(), nil
	}
	return world.LoadScenario(path)
}

// resolveSettings resolves the options for command, applying flag
// overrides.
func (f *episodeFlags) resolveSettings(cfg *config.Config, command string) (config.Settings, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if f.maxExpansions >= 0 || f.timeout != "" {
		cfg = cfg.Clone()
		if f.maxExpansions >= 0 {
			cfg.SetCommandOption(command, "planner.max-expansions", fmt.Sprint(f.maxExpansions))
		}
		if f.timeout != "" {
			cfg.SetCommandOption(command, "planner.timeout", f.timeout)
		}
	}
	return config.DefaultSchema().Settings(cfg, command)
}

// paramsFor builds planner parameters. Targets in the scenario override the
// configured ones kind by kind.
func paramsFor(s config.Settings, sc *world.Scenario) domain.Params {
	p := domain.Params{
		GatherUnit:      s.GatherUnit,
		ExpandCost:      s.ExpandCost,
		MaxWorkforce:    s.MaxWorkforce,
		MaxParticipants: s.MaxParticipants,
		ExpandWhen:      s.ExpandWhen,
		Targets: map[world.Resource]int{
			world.Gold: s.TargetGold,
			world.Wood: s.TargetWood,
		},
	}
	if sc != nil {
		maps.Copy(p.Targets, sc.Targets)
	}
	return p
}

// openJournal opens the episode journal named by the settings, or the
// default one.
func openJournal(s config.Settings) (*storage.Store, error) {
	dir := s.JournalDir
	if dir == "" {
		var err error
		if dir, err = storage.DefaultDirectory(); err != nil {
			return nil, err
		}
	}
	return storage.Open(dir)
}

func retentionFor(cfg *config.Config) storage.Retention {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return storage.Retention{
		MaxCount: cfg.Journal.MaxCount,
		MaxAge:   time.Duration(cfg.Journal.MaxAgeDays) * 24 * time.Hour,
	}
}
