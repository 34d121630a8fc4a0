package command

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joeycumines/harvest/internal/config"
	"github.com/joeycumines/harvest/internal/search"
	"github.com/joeycumines/harvest/internal/storage"
	"github.com/joeycumines/harvest/internal/world"
)

func newTestRegistry(cfg *config.Config, configPath string) *Registry {
	r := NewRegistry()
	r.Register(NewHelpCommand(r))
	r.Register(NewVersionCommand("1.2.3"))
	r.Register(NewConfigCommand(cfg, configPath))
	r.Register(NewInitCommand())
	r.Register(NewPlanCommand(cfg))
	r.Register(NewRunCommand(cfg))
	r.Register(NewEpisodesCommand(cfg))
	r.Register(NewScenarioCommand())
	return r
}

// journalConfig points the journal at a fresh directory.
func journalConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.SetGlobalOption("journal.dir", dir)
	cfg.SetGlobalOption("log.level", "error")
	return cfg, dir
}

func run(t *testing.T, r *Registry, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := r.Run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(config.NewConfig(), "")
	assert.Equal(t, []string{"config", "episodes", "help", "init", "plan", "run", "scenario", "version"}, r.List())

	_, err := r.Get("nope")
	assert.EqualError(t, err, "command not found: nope")

	_, stderr, err := run(t, r, "nope")
	assert.Error(t, err)
	assert.Contains(t, stderr, "Unknown command: nope")

	_, _, err = run(t, r, "plan", "-no-such-flag")
	assert.Error(t, err)

	assert.EqualError(t, r.Run(nil, &bytes.Buffer{}, &bytes.Buffer{}), "no command given")
}

func TestHelpAndVersion(t *testing.T) {
	r := newTestRegistry(config.NewConfig(), "")

	stdout, _, err := run(t, r, "help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage: harvest <command>")
	for _, name := range r.List() {
		assert.Contains(t, stdout, "  "+name)
	}

	stdout, _, err = run(t, r, "help", "run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage: harvest run [options]")
	assert.Contains(t, stdout, "-max-ticks")

	_, _, err = run(t, r, "help", "nope")
	assert.Error(t, err)

	stdout, _, err = run(t, r, "version")
	require.NoError(t, err)
	assert.Equal(t, "harvest version 1.2.3\n", stdout)
}

func TestPlanCommand(t *testing.T) {
	cfg, _ := journalConfig(t)
	r := newTestRegistry(cfg, "")
	tracePath := filepath.Join(t.TempDir(), "trace.txt")

	stdout, _, err := run(t, r, "plan", "-metrics", "-trace", tracePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "TOTAL PLAN LENGTH: 16\n"), stdout)
	assert.Contains(t, stdout, "16 steps, cost")
	assert.Contains(t, stdout, `harvest_search_searches_total{outcome="found"} 1`)

	data, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	assert.Len(t, lines, 17)
	assert.Equal(t, "TOTAL PLAN LENGTH: 16", lines[0])
}

func TestPlanCommandBudget(t *testing.T) {
	cfg, _ := journalConfig(t)
	r := newTestRegistry(cfg, "")

	stdout, _, err := run(t, r, "plan", "-max-expansions", "1")
	require.ErrorIs(t, err, search.ErrNoPlan)
	assert.Equal(t, "No plan: budget after 1 expansions\n", stdout)
}

func TestPlanCommandScenarioTargets(t *testing.T) {
	cfg, _ := journalConfig(t)
	r := newTestRegistry(cfg, "")

	sc := world.DefaultScenario()
	sc.Targets = map[world.Resource]int{world.Gold: 100, world.Wood: 0}
	path := filepath.Join(t.TempDir(), "small.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, sc.Encode(f))
	require.NoError(t, f.Close())

	stdout, _, err := run(t, r, "plan", "-scenario", path, "-stats=false")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "TOTAL PLAN LENGTH: 4\n"), stdout)
}

func TestRunCommand(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("os/signal.signal_recv"),
		goleak.IgnoreAnyFunction("os/signal.loop"),
	)

	cfg, dir := journalConfig(t)
	r := newTestRegistry(cfg, "")

	stdout, _, err := run(t, r, "run")
	require.NoError(t, err)
	assert.Contains(t, stdout, ": complete after ")
	assert.Contains(t, stdout, "gold 200, wood 200")

	store, err := storage.Open(dir)
	require.NoError(t, err)
	episodes, err := store.List()
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	ep := episodes[0]
	assert.Equal(t, storage.OutcomeComplete, ep.Outcome)
	assert.Equal(t, "default", ep.Scenario)
	assert.Len(t, ep.Plan, 16)
	assert.Equal(t, map[string]int{"gold": 200, "wood": 200}, ep.Stock)

	stdout, _, err = run(t, r, "episodes")
	require.NoError(t, err)
	assert.Contains(t, stdout, ep.ID)
	assert.Contains(t, stdout, "complete")

	stdout, _, err = run(t, r, "episodes", "show", ep.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Outcome:  complete")
	assert.Contains(t, stdout, "Stock:    gold 200/200, wood 200/200")
	assert.Contains(t, stdout, "TOTAL PLAN LENGTH: 16")
}

func TestRunCommandTickLimit(t *testing.T) {
	cfg, dir := journalConfig(t)
	r := newTestRegistry(cfg, "")

	stdout, _, err := run(t, r, "run", "-max-ticks", "3")
	require.NoError(t, err)
	assert.Contains(t, stdout, ": tick-limit after 3 ticks")

	stdout, _, err = run(t, r, "run", "-max-expansions", "1", "-no-record")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no plan: budget after 1 expansions")
	assert.Contains(t, stdout, ": no-plan after 0 ticks")

	store, err := storage.Open(dir)
	require.NoError(t, err)
	episodes, err := store.List()
	require.NoError(t, err)
	assert.Len(t, episodes, 1, "-no-record episode is not saved")
}

func TestEpisodesPrune(t *testing.T) {
	cfg, dir := journalConfig(t)
	cfg.Journal.MaxCount = 1
	cfg.Journal.AutoPrune = false
	r := newTestRegistry(cfg, "")

	for range 3 {
		_, _, err := run(t, r, "run", "-max-ticks", "1")
		require.NoError(t, err)
	}

	stdout, _, err := run(t, r, "episodes", "-dry-run", "prune")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 of 3 episodes would be removed")

	stdout, _, err = run(t, r, "episodes", "prune")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed 2, kept 1")

	store, err := storage.Open(dir)
	require.NoError(t, err)
	episodes, err := store.List()
	require.NoError(t, err)
	assert.Len(t, episodes, 1)

	_, _, err = run(t, r, "episodes", "show")
	assert.Error(t, err)
	_, _, err = run(t, r, "episodes", "show", "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, _, err = run(t, r, "episodes", "frobnicate")
	assert.Error(t, err)
}

func TestScenarioCommand(t *testing.T) {
	r := newTestRegistry(config.NewConfig(), "")

	stdout, _, err := run(t, r, "scenario")
	require.NoError(t, err)
	sc, err := world.DecodeScenario(strings.NewReader(stdout))
	require.NoError(t, err)
	assert.Equal(t, world.DefaultScenario(), sc)

	stdout, _, err = run(t, r, "scenario", "check")
	require.NoError(t, err)
	assert.Equal(t, "Scenario \"default\" is valid: 16x12 grid, 1 worker(s), 1 base(s), 2 node(s)\n", stdout)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: 4\nheight: 4\nworkers: []\nbases: []\nnodes: []\n"), 0644))
	_, _, err = run(t, r, "scenario", "-scenario", path, "check")
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cfg := config.NewConfig()
	r := newTestRegistry(cfg, path)

	stdout, _, err := run(t, r, "config", "planner.target-gold")
	require.NoError(t, err)
	assert.Equal(t, "planner.target-gold: 200\n", stdout)

	_, _, err = run(t, r, "config", "planner.target-gold", "300")
	require.NoError(t, err)
	_, _, err = run(t, r, "config", "-section", "run", "max-ticks", "9")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "planner.target-gold 300\n\n[run]\nmax-ticks 9\n", string(data))

	stdout, _, err = run(t, r, "config", "-section", "run", "max-ticks")
	require.NoError(t, err)
	assert.Equal(t, "max-ticks: 9\n", stdout)

	stdout, _, err = run(t, r, "config", "no.such.key")
	require.NoError(t, err)
	assert.Contains(t, stdout, "not found")

	cfg.SetGlobalOption("planner.timeout", "soon")
	stdout, _, err = run(t, r, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 issue(s)")

	stdout, _, err = run(t, r, "config", "schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, "[run] Options:")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config")
	t.Setenv("HARVEST_CONFIG", path)
	r := newTestRegistry(config.NewConfig(), "")

	stdout, stderr, err := run(t, r, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Initialized harvest configuration at: "+path)
	assert.Empty(t, stderr)

	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Warnings)
	v, _ := loaded.GetCommandOption("run", "max-ticks")
	assert.Equal(t, "5000", v)

	stdout, _, err = run(t, r, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "already exists")

	_, _, err = run(t, r, "init", "-force")
	require.NoError(t, err)
}

func TestResolveLogConfig(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetGlobalOption("log.level", "debug")
	lc, err := resolveLogConfig("", "info", cfg)
	require.NoError(t, err)
	assert.Nil(t, lc.logFile)
	assert.Equal(t, "DEBUG", lc.level.String())

	_, err = resolveLogConfig("", "loud", nil)
	assert.EqualError(t, err, "invalid log level: loud")

	path := filepath.Join(t.TempDir(), "harvest.log")
	lc, err = resolveLogConfig(path, "warn", nil)
	require.NoError(t, err)
	lc.logger(nil).Warn("[test] hello", "n", 1)
	lc.close()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"[test] hello"`)
}
