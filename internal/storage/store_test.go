package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func episode(started time.Time) *Episode {
	return &Episode{
		ID:        uuid.NewString(),
		Scenario:  "test",
		StartedAt: started,
		Outcome:   OutcomeComplete,
		Plan:      []string{"Goto Gold", "Gather 100 Gold"},
		Ticks:     42,
		Stock:     map[string]int{"gold": 200, "wood": 200},
		Search:    SearchSummary{Expanded: 10, Generated: 30},
	}
}

func TestSaveLoad(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	ep := episode(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, s.Save(ep))
	assert.Equal(t, CurrentSchemaVersion, ep.Version)

	got, err := s.Load(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, ep.ID, got.ID)
	assert.True(t, ep.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, ep.Plan, got.Plan)
	assert.Equal(t, ep.Stock, got.Stock)
	assert.Equal(t, ep.Search, got.Search)

	ep.Outcome = OutcomeAborted
	require.NoError(t, s.Save(ep))
	got, err = s.Load(ep.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAborted, got.Outcome)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadErrors(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, err = s.Load(uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Load("../escape")
	assert.ErrorContains(t, err, "invalid episode id")

	assert.Error(t, s.Save(&Episode{ID: "nope"}))
	assert.Error(t, s.Save(nil))

	_, err = Open("")
	assert.Error(t, err)
}

func TestListSortedAndSkipsJunk(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	late, early := episode(base.Add(time.Hour)), episode(base)
	require.NoError(t, s.Save(late))
	require.NoError(t, s.Save(early))

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), uuid.NewString()+episodeSuffix), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("hi"), 0644))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, early.ID, list[0].ID)
	assert.Equal(t, late.ID, list[1].ID)
}

func TestPrune(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 5 {
		ep := episode(now.Add(-time.Duration(5-i) * 24 * time.Hour))
		require.NoError(t, s.Save(ep))
		ids = append(ids, ep.ID)
	}

	report, err := s.Prune(Retention{MaxCount: 3}, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[:2], report.Removed)
	assert.Equal(t, 3, report.Kept)

	report, err = s.Prune(Retention{MaxAge: 36 * time.Hour}, now)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids[2:4], report.Removed)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[4], list[0].ID)
}

func TestPruneLocked(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	unlock, err := s.lockPrune()
	require.NoError(t, err)

	_, err = s.Prune(Retention{MaxCount: 1}, time.Now())
	assert.ErrorIs(t, err, ErrWouldBlock)

	require.NoError(t, unlock())
	assert.NoFileExists(t, filepath.Join(s.Dir(), pruneLockName))
	_, err = s.Prune(Retention{MaxCount: 1}, time.Now())
	assert.NoError(t, err)
}

func TestRecordMustMatchFileName(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	good := episode(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(good))

	// a valid record copied under another id
	data, err := os.ReadFile(filepath.Join(s.Dir(), good.ID+episodeSuffix))
	require.NoError(t, err)
	other := uuid.NewString()
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), other+episodeSuffix), data, 0644))

	// a record whose id is not a uuid, named to match
	bad := episode(good.StartedAt)
	bad.ID = "not-a-uuid"
	bad.Version = CurrentSchemaVersion
	raw, err := json.Marshal(bad)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), bad.ID+episodeSuffix), raw, 0644))

	_, err = s.Load(other)
	assert.ErrorContains(t, err, "mismatched id")

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, good.ID, list[0].ID)

	report, err := s.Prune(Retention{MaxCount: 1}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
	assert.FileExists(t, filepath.Join(s.Dir(), bad.ID+episodeSuffix))
}

func TestAtomicWriteCrashLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.json")
	require.NoError(t, AtomicWriteFile(path, []byte("old"), 0644))

	testHookCrashBeforeRename = func() { panic("crash") }
	defer func() { testHookCrashBeforeRename = nil }()
	assert.Panics(t, func() { _ = AtomicWriteFile(path, []byte("new"), 0644) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed by the deferred cleanup")
}

func TestAtomicWriteRenameError(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "child"), nil, 0644))

	err := AtomicWriteFile(target, []byte("x"), 0644)
	require.Error(t, err)
	var re RenameError
	require.ErrorAs(t, err, &re)
	assert.NotEmpty(t, re.TempPath())
	_, statErr := os.Stat(re.TempPath())
	assert.True(t, os.IsNotExist(statErr))
}
