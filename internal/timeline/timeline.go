// Package timeline is the pure core of the aggregator: deduplication of
// records that describe the same real-world broadcast, retention windowing,
// and grouping by local calendar day. All three passes are deterministic
// regardless of the completion order of the fetches that produced the input.
package timeline

import (
	"sort"
	"time"

	"jigdule/internal/model"
)

// ScheduleResolver is the slice of the cache ledger the deduplicator needs:
// the confirmed scheduled start for an item, if one was ever resolved.
type ScheduleResolver interface {
	ResolvedScheduleTime(itemID string) (time.Time, bool)
}

// Options configures the windowing and dedup passes.
type Options struct {
	// Now is the evaluation instant. Callers pass it in so runs are
	// reproducible under test.
	Now time.Time

	// Location is the fixed display timezone whose calendar days key both
	// the archived window and the day groups.
	Location *time.Location

	// PastDays keeps archived events whose local day falls within
	// [today-PastDays, today] inclusive.
	PastDays int

	// FutureDays keeps scheduled events up to Now + FutureDays.
	FutureDays int

	// Tolerance is the start-time proximity under which a live and an
	// archived record from the same platform and creator are the same
	// broadcast.
	Tolerance time.Duration

	// Resolver supplies cache-resolved schedule times for tie-breaking.
	// May be nil.
	Resolver ScheduleResolver
}

func (o *Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Build runs the full core pass: dedup, window, group.
func Build(events []model.Event, opts Options) []model.DayGroup {
	deduped := Deduplicate(events, opts)
	windowed := Window(deduped, opts)
	return Group(windowed, opts.location())
}

// Deduplicate removes records that represent the same broadcast surfaced
// more than once. Two rules, both applied:
//
//  1. Same-platform overlap across query families: equal SourceItemID, or,
//     when one side carries no ID, equal title on the same local
//     calendar day. The higher-priority kind wins (Live > Scheduled >
//     Archived). On an exact (kind, id) tie the event whose start matches
//     the cache-resolved schedule time wins, so the latest schedule
//     correction is the one that survives.
//  2. Cross-kind proximity: an Archived and a Live record from the same
//     platform and creator whose starts fall within the tolerance window
//     are one broadcast; only the Live survives.
//
// Running Deduplicate on its own output is a no-op.
func Deduplicate(events []model.Event, opts Options) []model.Event {
	loc := opts.location()

	// Deterministic scan order: higher kind priority first, then earlier
	// start, then platform/creator/id. First-seen-wins below then encodes
	// the kind priority rule.
	sorted := make([]model.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Kind.Priority() != b.Kind.Priority() {
			return a.Kind.Priority() > b.Kind.Priority()
		}
		if !a.OccursAt.Equal(b.OccursAt) {
			return a.OccursAt.Before(b.OccursAt)
		}
		if a.Platform != b.Platform {
			return a.Platform < b.Platform
		}
		if a.CreatorID != b.CreatorID {
			return a.CreatorID < b.CreatorID
		}
		return a.SourceItemID < b.SourceItemID
	})

	type idKey struct {
		platform model.Platform
		creator  string
		itemID   string
	}
	type titleKey struct {
		platform model.Platform
		creator  string
		title    string
		localDay string
	}

	byID := make(map[idKey]int)
	byTitle := make(map[titleKey]int)
	kept := make([]model.Event, 0, len(sorted))

	for _, ev := range sorted {
		replaceAt := -1
		dup := false

		if ev.SourceItemID != "" {
			k := idKey{ev.Platform, ev.CreatorID, ev.SourceItemID}
			if at, ok := byID[k]; ok {
				dup = true
				// Equal kind and equal id: prefer the start confirmed by
				// the cache (the latest schedule correction).
				if kept[at].Kind == ev.Kind && resolvedMatch(opts.Resolver, ev) && !resolvedMatch(opts.Resolver, kept[at]) {
					replaceAt = at
				}
			}
		}
		if !dup && ev.Title != "" {
			// The title+day rule only applies when one side carries no
			// platform identifier (e.g. a bare Twitch schedule slot).
			k := titleKey{ev.Platform, ev.CreatorID, ev.Title, localDayKey(ev.OccursAt, loc)}
			if at, ok := byTitle[k]; ok {
				if ev.SourceItemID == "" || kept[at].SourceItemID == "" {
					dup = true
				}
			}
		}

		if dup {
			if replaceAt >= 0 {
				kept[replaceAt] = ev
			}
			continue
		}

		kept = append(kept, ev)
		at := len(kept) - 1
		if ev.SourceItemID != "" {
			byID[idKey{ev.Platform, ev.CreatorID, ev.SourceItemID}] = at
		}
		if ev.Title != "" {
			byTitle[titleKey{ev.Platform, ev.CreatorID, ev.Title, localDayKey(ev.OccursAt, loc)}] = at
		}
	}

	// Cross-kind proximity: drop archived records that sit within the
	// tolerance window of a live record from the same platform and creator.
	type liveKey struct {
		platform model.Platform
		creator  string
	}
	lives := make(map[liveKey][]time.Time)
	for _, ev := range kept {
		if ev.Kind == model.KindLive {
			k := liveKey{ev.Platform, ev.CreatorID}
			lives[k] = append(lives[k], ev.OccursAt)
		}
	}

	out := make([]model.Event, 0, len(kept))
	for _, ev := range kept {
		if ev.Kind == model.KindArchived {
			if starts, ok := lives[liveKey{ev.Platform, ev.CreatorID}]; ok {
				matched := false
				for _, ls := range starts {
					if absDuration(ev.OccursAt.Sub(ls)) <= opts.Tolerance {
						matched = true
						break
					}
				}
				if matched {
					continue
				}
			}
		}
		out = append(out, ev)
	}

	return out
}

// Window applies the retention policy by kind:
//
//   - Live: always retained.
//   - Scheduled: retained iff OccursAt <= Now + FutureDays.
//   - Archived: retained iff its local calendar day falls within
//     [today-PastDays, today] inclusive.
//
// Events failing their rule are dropped, not erred.
func Window(events []model.Event, opts Options) []model.Event {
	loc := opts.location()
	nowLocal := opts.Now.In(loc)
	today := truncateToDay(nowLocal)
	floor := today.AddDate(0, 0, -opts.PastDays)
	futureBound := opts.Now.AddDate(0, 0, opts.FutureDays)

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case model.KindLive:
			out = append(out, ev)
		case model.KindScheduled:
			if !ev.OccursAt.After(futureBound) {
				out = append(out, ev)
			}
		case model.KindArchived:
			day := truncateToDay(ev.OccursAt.In(loc))
			if !day.Before(floor) && !day.After(today) {
				out = append(out, ev)
			}
		}
	}
	return out
}

// Group buckets events by local calendar day and orders groups ascending
// by date. Within a group events are ordered by start, ties broken by
// platform then creator for reproducible output.
func Group(events []model.Event, loc *time.Location) []model.DayGroup {
	byDay := make(map[string][]model.Event)
	dayStart := make(map[string]time.Time)

	for _, ev := range events {
		day := truncateToDay(ev.OccursAt.In(loc))
		key := day.Format("2006-01-02")
		byDay[key] = append(byDay[key], ev)
		dayStart[key] = day
	}

	keys := make([]string, 0, len(byDay))
	for k := range byDay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make([]model.DayGroup, 0, len(keys))
	for _, k := range keys {
		evs := byDay[k]
		sort.SliceStable(evs, func(i, j int) bool {
			a, b := evs[i], evs[j]
			if !a.OccursAt.Equal(b.OccursAt) {
				return a.OccursAt.Before(b.OccursAt)
			}
			if a.Platform != b.Platform {
				return a.Platform < b.Platform
			}
			return a.CreatorID < b.CreatorID
		})
		groups = append(groups, model.DayGroup{LocalDate: dayStart[k], Events: evs})
	}
	return groups
}

func resolvedMatch(r ScheduleResolver, ev model.Event) bool {
	if r == nil {
		return false
	}
	t, ok := r.ResolvedScheduleTime(ev.SourceItemID)
	return ok && t.Equal(ev.OccursAt)
}

func localDayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
