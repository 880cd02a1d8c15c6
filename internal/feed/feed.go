// Package feed exports the aggregated timeline as an iCalendar document so
// the schedule is subscribable from calendar clients.
package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	ics "github.com/arran4/golang-ical"

	"jigdule/internal/model"
)

// Broadcasts have no reliable end instant, so every entry gets a nominal
// one-hour block.
const defaultEventDuration = time.Hour

// WriteTimeline serializes the grouped timeline into dir/timeline.ics.
func WriteTimeline(dir string, groups []model.DayGroup, creators []model.Creator, now time.Time) error {
	byID := make(map[string]model.Creator, len(creators))
	for _, c := range creators {
		byID[c.ID] = c
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//jigdule//timeline//JA")

	for _, g := range groups {
		for _, ev := range g.Events {
			uid := fmt.Sprintf("%s-%s@jigdule", ev.Platform, ev.SourceItemID)
			entry := cal.AddEvent(uid)
			entry.SetDtStampTime(now.UTC())
			entry.SetStartAt(ev.OccursAt.UTC())
			entry.SetEndAt(ev.OccursAt.UTC().Add(defaultEventDuration))
			entry.SetSummary(summary(ev, byID))
			if ev.Permalink != "" {
				entry.SetURL(ev.Permalink)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("feed: create out dir: %w", err)
	}

	path := filepath.Join(dir, "timeline.ics")
	tmp, err := os.CreateTemp(dir, ".jigdule-ics-*.tmp")
	if err != nil {
		return fmt.Errorf("feed: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(cal.Serialize()); err != nil {
		tmp.Close()
		return fmt.Errorf("feed: write calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("feed: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("feed: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("feed: rename: %w", err)
	}
	return nil
}

func summary(ev model.Event, byID map[string]model.Creator) string {
	name := ev.CreatorID
	if c, ok := byID[ev.CreatorID]; ok && c.Name != "" {
		name = c.Name
	}
	if ev.Title == "" {
		return name
	}
	return fmt.Sprintf("%s: %s", name, ev.Title)
}
