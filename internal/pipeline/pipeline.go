// Package pipeline orchestrates one aggregation run: authenticate, fan out
// the per-creator platform calls under a concurrency cap, collect partial
// results and diagnostics, then hand the full set to the deterministic core
// (dedup, window, group).
package pipeline

import (
	"context"
	"sync"
	"time"

	"jigdule/internal/cache"
	"jigdule/internal/config"
	"jigdule/internal/errs"
	"jigdule/internal/log"
	"jigdule/internal/model"
	"jigdule/internal/timeline"
	"jigdule/internal/youtube"
)

// TwitchAPI is the Helix surface the pipeline consumes.
type TwitchAPI interface {
	Authenticate(ctx context.Context) error
	FetchLive(ctx context.Context, creator model.Creator) (*model.Event, error)
	FetchScheduled(ctx context.Context, creator model.Creator) ([]model.Event, error)
	FetchArchived(ctx context.Context, creator model.Creator, since time.Time) ([]model.Event, error)
}

// YouTubeAPI is the Data API surface the pipeline consumes.
type YouTubeAPI interface {
	FetchLive(ctx context.Context, creator model.Creator) ([]model.Event, error)
	FetchScheduled(ctx context.Context, creator model.Creator, sched youtube.ScheduleCache) ([]model.Event, error)
	FetchRecent(ctx context.Context, creator model.Creator, since time.Time) ([]model.Event, error)
}

// Failure records one platform call that contributed an empty result.
type Failure struct {
	CreatorID string
	Platform  model.Platform
	Call      string
	Err       error
}

// Result is the outcome of one run: the grouped timeline plus diagnostics
// for the calls that failed. A Result with Failures is still rendered;
// only an auth failure aborts a run entirely.
type Result struct {
	Groups    []model.DayGroup
	Failures  []Failure
	FetchedAt time.Time
}

// Runner wires the adapters, the config and the ledger into a runnable
// pipeline.
type Runner struct {
	Cfg     *config.Config
	Twitch  TwitchAPI
	YouTube YouTubeAPI
	Ledger  *cache.Ledger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// fetchUnit is one platform call for one creator.
type fetchUnit struct {
	creator  model.Creator
	platform model.Platform
	call     string
	run      func(ctx context.Context) ([]model.Event, error)
}

// Run executes one aggregation pass over the roster. Per-call failures are
// collected into the Result; only credential acquisition failure returns a
// non-nil error.
func (r *Runner) Run(ctx context.Context, creators []model.Creator) (*Result, error) {
	now := r.now()
	loc := r.Cfg.Location()

	needsTwitch := false
	needsYouTube := false
	for _, c := range creators {
		if c.TwitchUserLogin != "" {
			needsTwitch = true
		}
		if c.YouTubeChannel != "" {
			needsYouTube = true
		}
	}

	if needsTwitch && r.Twitch == nil {
		return nil, errs.Auth("twitch client not configured (missing credentials)", nil)
	}
	if needsYouTube && r.YouTube == nil {
		return nil, errs.Auth("youtube client not configured (missing api key)", nil)
	}

	if needsTwitch {
		authCtx, cancel := context.WithTimeout(ctx, r.Cfg.CallTimeout())
		err := r.Twitch.Authenticate(authCtx)
		cancel()
		if err != nil {
			// Nothing can be fetched without a token; fatal to the run.
			return nil, err
		}
	}

	// Archived/recent queries look back from local midnight of the oldest
	// retained day, so the fetch floor covers the whole retention window.
	nowLocal := now.In(loc)
	today := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), 0, 0, 0, 0, loc)
	since := today.AddDate(0, 0, -r.Cfg.PastDays).UTC()

	units := r.buildUnits(creators, since)

	var (
		mu       sync.Mutex
		events   []model.Event
		failures []Failure
	)

	sem := make(chan struct{}, r.Cfg.Concurrency)
	var wg sync.WaitGroup

	for _, u := range units {
		wg.Add(1)
		go func(u fetchUnit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, r.Cfg.CallTimeout())
			defer cancel()

			evs, err := u.run(callCtx)
			if err != nil {
				log.Error("platform call failed", err,
					"creator", u.creator.ID,
					"platform", string(u.platform),
					"call", u.call,
				)
				mu.Lock()
				failures = append(failures, Failure{
					CreatorID: u.creator.ID,
					Platform:  u.platform,
					Call:      u.call,
					Err:       err,
				})
				mu.Unlock()
				return
			}

			for _, ev := range evs {
				r.Ledger.MarkSeen(ev.SourceItemID)
			}

			mu.Lock()
			events = append(events, evs...)
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	log.Info("fetch completed",
		"creators", len(creators),
		"calls", len(units),
		"events", len(events),
		"failures", len(failures),
	)

	groups := timeline.Build(events, timeline.Options{
		Now:        now,
		Location:   loc,
		PastDays:   r.Cfg.PastDays,
		FutureDays: r.Cfg.FutureDays,
		Tolerance:  r.Cfg.Tolerance(),
		Resolver:   r.Ledger,
	})

	return &Result{
		Groups:    groups,
		Failures:  failures,
		FetchedAt: now,
	}, nil
}

func (r *Runner) buildUnits(creators []model.Creator, since time.Time) []fetchUnit {
	units := make([]fetchUnit, 0, len(creators)*6)

	for _, c := range creators {
		creator := c

		if creator.TwitchUserLogin != "" && r.Twitch != nil {
			units = append(units,
				fetchUnit{creator, model.PlatformTwitch, "live", func(ctx context.Context) ([]model.Event, error) {
					ev, err := r.Twitch.FetchLive(ctx, creator)
					if err != nil || ev == nil {
						return nil, err
					}
					return []model.Event{*ev}, nil
				}},
				fetchUnit{creator, model.PlatformTwitch, "scheduled", func(ctx context.Context) ([]model.Event, error) {
					return r.Twitch.FetchScheduled(ctx, creator)
				}},
				fetchUnit{creator, model.PlatformTwitch, "archived", func(ctx context.Context) ([]model.Event, error) {
					return r.Twitch.FetchArchived(ctx, creator, since)
				}},
			)
		}

		if creator.YouTubeChannel != "" && r.YouTube != nil {
			units = append(units,
				fetchUnit{creator, model.PlatformYouTube, "live", func(ctx context.Context) ([]model.Event, error) {
					return r.YouTube.FetchLive(ctx, creator)
				}},
				fetchUnit{creator, model.PlatformYouTube, "scheduled", func(ctx context.Context) ([]model.Event, error) {
					return r.YouTube.FetchScheduled(ctx, creator, r.Ledger)
				}},
				fetchUnit{creator, model.PlatformYouTube, "recent", func(ctx context.Context) ([]model.Event, error) {
					return r.YouTube.FetchRecent(ctx, creator, since)
				}},
			)
		}
	}

	return units
}
