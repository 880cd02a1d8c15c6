// Package cache implements the persisted run-to-run ledger: item IDs that
// were already surfaced and schedule times that were already resolved via
// a detail lookup. The ledger bounds external-call cost and pins volatile
// "upcoming" start times across runs.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"jigdule/internal/errs"
	"jigdule/internal/log"
)

// document is the on-disk JSON shape. It must round-trip losslessly;
// absence or corruption on load yields an empty ledger, never an error.
type document struct {
	SeenItemIDs           []string             `json:"seen_item_ids"`
	ResolvedScheduleTimes map[string]time.Time `json:"resolved_schedule_times"`
	LastRunAt             time.Time            `json:"last_run_at"`
}

// Ledger is the process-wide cache. Fetches for different creators complete
// concurrently, so every accessor serializes on an internal mutex.
type Ledger struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	resolved map[string]time.Time
	lastRun  time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		seen:     make(map[string]struct{}),
		resolved: make(map[string]time.Time),
	}
}

// Load reads a ledger from path. A missing or corrupt file degrades to an
// empty ledger with a warning; it is never a fatal error.
func Load(path string) *Ledger {
	l := NewLedger()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("ledger unreadable, starting empty", "path", path, "err", err)
		}
		return l
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("ledger corrupt, starting empty", "path", path, "err", err)
		return l
	}

	for _, id := range doc.SeenItemIDs {
		l.seen[id] = struct{}{}
	}
	for id, t := range doc.ResolvedScheduleTimes {
		l.resolved[id] = t.UTC()
	}
	l.lastRun = doc.LastRunAt
	return l
}

// Save persists the ledger atomically (temp file + rename) and stamps
// LastRunAt with now. Failure is surfaced as a coded cache error so callers
// can warn without failing the run.
func (l *Ledger) Save(path string, now time.Time) error {
	l.mu.Lock()
	doc := document{
		SeenItemIDs:           make([]string, 0, len(l.seen)),
		ResolvedScheduleTimes: make(map[string]time.Time, len(l.resolved)),
		LastRunAt:             now.UTC(),
	}
	for id := range l.seen {
		doc.SeenItemIDs = append(doc.SeenItemIDs, id)
	}
	for id, t := range l.resolved {
		doc.ResolvedScheduleTimes[id] = t.UTC()
	}
	l.lastRun = doc.LastRunAt
	l.mu.Unlock()

	// Stable output: keep the document diff-friendly between runs.
	sort.Strings(doc.SeenItemIDs)

	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return errs.CacheIO("marshal ledger", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errs.CacheIO("create ledger dir", err)
	}

	tmp, err := os.CreateTemp(dir, ".jigdule-ledger-*.tmp")
	if err != nil {
		return errs.CacheIO("create temp ledger", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.CacheIO("write temp ledger", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errs.CacheIO("sync temp ledger", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.CacheIO("close temp ledger", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.CacheIO("rename ledger", err)
	}
	return nil
}

// Seen reports whether itemID was surfaced in this or a previous run.
func (l *Ledger) Seen(itemID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[itemID]
	return ok
}

// MarkSeen records itemID as surfaced.
func (l *Ledger) MarkSeen(itemID string) {
	if itemID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[itemID] = struct{}{}
}

// ResolvedScheduleTime returns the previously-confirmed scheduled start for
// itemID, if one was resolved in this or a prior run.
func (l *Ledger) ResolvedScheduleTime(itemID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.resolved[itemID]
	return t, ok
}

// ResolveScheduleTime pins the confirmed scheduled start for itemID so the
// detail endpoint is not queried again for it.
func (l *Ledger) ResolveScheduleTime(itemID string, t time.Time) {
	if itemID == "" || t.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolved[itemID] = t.UTC()
}

// LastRunAt returns the instant of the previous successful run, zero if
// the ledger is fresh.
func (l *Ledger) LastRunAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastRun
}

// Counts returns the number of seen IDs and resolved schedule times,
// for logging.
func (l *Ledger) Counts() (seen, resolved int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen), len(l.resolved)
}
