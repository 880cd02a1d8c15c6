package cache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLedger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")

	l := NewLedger()
	l.MarkSeen("abc123")
	l.MarkSeen("def456")
	resolved := time.Date(2024, 1, 12, 21, 0, 0, 0, time.UTC)
	l.ResolveScheduleTime("def456", resolved)

	now := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	require.NoError(t, l.Save(path, now))

	reloaded := Load(path)
	require.True(t, reloaded.Seen("abc123"))
	require.True(t, reloaded.Seen("def456"))
	require.False(t, reloaded.Seen("ghi789"))

	got, ok := reloaded.ResolvedScheduleTime("def456")
	require.True(t, ok)
	require.True(t, got.Equal(resolved))

	require.True(t, reloaded.LastRunAt().Equal(now))
}

func TestLoad_MissingFileYieldsEmptyLedger(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), "nope.json"))
	seen, resolved := l.Counts()
	require.Zero(t, seen)
	require.Zero(t, resolved)
	require.True(t, l.LastRunAt().IsZero())
}

func TestLoad_CorruptFileYieldsEmptyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	l := Load(path)
	seen, resolved := l.Counts()
	require.Zero(t, seen)
	require.Zero(t, resolved)
}

func TestLedger_IgnoresEmptyAndZeroValues(t *testing.T) {
	l := NewLedger()
	l.MarkSeen("")
	l.ResolveScheduleTime("id", time.Time{})
	l.ResolveScheduleTime("", time.Now())

	seen, resolved := l.Counts()
	require.Zero(t, seen)
	require.Zero(t, resolved)
}

func TestLedger_ConcurrentMutation(t *testing.T) {
	l := NewLedger()
	when := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := string(rune('a'+n)) + "-item"
				l.MarkSeen(id)
				l.ResolveScheduleTime(id, when)
				l.Seen(id)
				l.ResolvedScheduleTime(id)
			}
		}(i)
	}
	wg.Wait()

	seen, resolved := l.Counts()
	require.Equal(t, 8, seen)
	require.Equal(t, 8, resolved)
}

func TestSave_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "ledger.json")
	l := NewLedger()
	l.MarkSeen("x")
	require.NoError(t, l.Save(path, time.Now()))

	reloaded := Load(path)
	require.True(t, reloaded.Seen("x"))
}
