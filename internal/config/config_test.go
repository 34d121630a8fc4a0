package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReader(t *testing.T) {
	c, err := LoadFromReader(strings.NewReader(`
# planner
planner.target-gold 300
log.level debug

[run]
max-ticks 900
tick-interval 10ms

[journal]
maxCount 5
autoPrune off
`))
	require.NoError(t, err)
	assert.Empty(t, c.Warnings)

	v, ok := c.GetGlobalOption("planner.target-gold")
	assert.True(t, ok)
	assert.Equal(t, "300", v)

	v, ok = c.GetCommandOption("run", "max-ticks")
	assert.True(t, ok)
	assert.Equal(t, "900", v)

	v, ok = c.GetCommandOption("run", "log.level")
	assert.True(t, ok, "falls back to global")
	assert.Equal(t, "debug", v)

	assert.Equal(t, JournalConfig{MaxCount: 5, MaxAgeDays: 30, AutoPrune: false}, c.Journal)
}

func TestLoadWarnings(t *testing.T) {
	c, err := LoadFromReader(strings.NewReader("bogus 1\nplanner.gather-unit lots\n[plan]\ntrace out.txt\nfoo bar\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		`global option "planner.gather-unit": expected int, got "lots"`,
		`unknown global option: "bogus" (value: "1")`,
		`unknown option for command "plan": "foo" (value: "bar")`,
	}, c.Warnings)
}

func TestLoadJournalErrors(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("[journal]\nmaxCount -1\n"))
	assert.ErrorContains(t, err, "cannot be negative")
	_, err = LoadFromReader(strings.NewReader("[journal]\nkeep 3\n"))
	assert.ErrorContains(t, err, "unknown journal option")
	_, err = LoadFromReader(strings.NewReader("[journal]\nautoPrune maybe\n"))
	assert.Error(t, err)
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()

	c, err := LoadFromPath(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, c.Global)

	path := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(path, []byte("log.level warn\n"), 0644))
	c, err = LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Global["log.level"])

	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(path, link))
	_, err = LoadFromPath(link)
	assert.ErrorContains(t, err, "symlink")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HARVEST_CONFIG", "/tmp/x/config")
	p, err := GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x/config", p)

	dir := t.TempDir()
	t.Setenv("HARVEST_CONFIG", filepath.Join(dir, "nested", "config"))
	require.NoError(t, EnsureConfigDir())
	assert.DirExists(t, filepath.Join(dir, "nested"))

	t.Setenv("HARVEST_CONFIG", "")
	t.Setenv("HOME", dir)
	p, err = GetConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".harvest", "config"), p)
}

func TestSettings(t *testing.T) {
	s := DefaultSchema()

	got, err := s.Settings(NewConfig(), "plan")
	require.NoError(t, err)
	assert.Equal(t, Settings{
		GatherUnit:      100,
		ExpandCost:      400,
		MaxWorkforce:    3,
		MaxParticipants: 3,
		TargetGold:      200,
		TargetWood:      200,
		MaxExpansions:   100000,
		Timeout:         10 * time.Second,
		MaxTicks:        5000,
		GatherTicks:     2,
		Record:          true,
		EpisodeLimit:    20,
	}, got)

	c := NewConfig()
	c.SetGlobalOption("planner.timeout", "2s")
	c.SetGlobalOption("planner.target-wood", "500")
	c.SetCommandOption("run", "planner.target-wood", "600")
	c.SetCommandOption("run", "tick-interval", "5ms")
	t.Setenv("HARVEST_TARGET_GOLD", "700")

	got, err = s.Settings(c, "run")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, got.Timeout)
	assert.Equal(t, 600, got.TargetWood, "command section beats global")
	assert.Equal(t, 700, got.TargetGold, "env beats file")
	assert.Equal(t, 5*time.Millisecond, got.TickInterval)

	got, err = s.Settings(c, "plan")
	require.NoError(t, err)
	assert.Equal(t, 500, got.TargetWood)

	c.SetGlobalOption("planner.max-expansions", "many")
	c.SetCommandOption("run", "record", "sometimes")
	_, err = s.Settings(c, "run")
	assert.ErrorContains(t, err, "planner.max-expansions")
	assert.ErrorContains(t, err, "record")
}

func TestSchemaHelp(t *testing.T) {
	s := DefaultSchema()
	assert.Equal(t, []string{"episodes", "journal", "plan", "run"}, s.Sections())
	assert.True(t, s.IsKnown("run", "max-ticks"))
	assert.True(t, s.IsKnown("run", "log.level"))
	assert.False(t, s.IsKnown("plan", "max-ticks"))

	help := s.FormatHelp()
	assert.True(t, strings.HasPrefix(help, "Global Options:\n"))
	assert.Contains(t, help, "[run] Options:")
	assert.Contains(t, help, "env: HARVEST_LOG_LEVEL")
	assert.Contains(t, help, "type: duration")
}

func TestSetKeyInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config")

	require.NoError(t, SetKeyInFile(path, "", "log.level", "debug"))
	require.NoError(t, SetKeyInFile(path, "run", "max-ticks", "10"))
	require.NoError(t, SetKeyInFile(path, "", "log.file", "/tmp/h.log"))
	require.NoError(t, SetKeyInFile(path, "run", "max-ticks", "20"))
	require.NoError(t, SetKeyInFile(path, "run", "record", "false"))
	require.NoError(t, SetKeyInFile(path, "", "log.level", "warn"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `log.level warn
log.file /tmp/h.log

[run]
max-ticks 20
record false
`, string(data))

	c, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Empty(t, c.Warnings)
}

func TestSetKeyInFileKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte("# mine\nlog.level info # keep\n\n[plan]\ntrace a.txt\n"), 0644))
	require.NoError(t, SetKeyInFile(path, "plan", "trace", "b.txt"))
	require.NoError(t, SetKeyInFile(path, "", "journal.dir", "/j"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\nlog.level info # keep\njournal.dir /j\n\n[plan]\ntrace b.txt\n", string(data))
}
