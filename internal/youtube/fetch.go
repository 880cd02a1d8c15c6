package youtube

import (
	"context"
	"html"
	"net/url"
	"strings"
	"time"

	"jigdule/internal/model"
)

// searchResponse is the search.list payload slice we care about.
type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
			Thumbnails  struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

// videosResponse is the videos.list payload slice we care about.
type videosResponse struct {
	Items []struct {
		ID                   string `json:"id"`
		LiveStreamingDetails struct {
			ScheduledStartTime time.Time `json:"scheduledStartTime"`
			ActualStartTime    time.Time `json:"actualStartTime"`
		} `json:"liveStreamingDetails"`
	} `json:"items"`
}

// rawItem is an intermediate search hit before kind-specific normalization.
type rawItem struct {
	videoID     string
	title       string
	publishedAt time.Time
	thumbnail   string
}

func (c *Client) search(ctx context.Context, channelID string, extra url.Values) ([]rawItem, error) {
	q := url.Values{}
	q.Set("channelId", channelID)
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("order", "date")
	q.Set("maxResults", "10")
	for k, vs := range extra {
		for _, v := range vs {
			q.Set(k, v)
		}
	}

	var body searchResponse
	if err := c.getJSON(ctx, "/search", q, &body); err != nil {
		return nil, err
	}

	items := make([]rawItem, 0, len(body.Items))
	for _, it := range body.Items {
		if it.ID.VideoID == "" {
			continue
		}
		items = append(items, rawItem{
			videoID: it.ID.VideoID,
			// Search results HTML-escape titles; undo that before the
			// title reaches dedup or rendering.
			title:       html.UnescapeString(it.Snippet.Title),
			publishedAt: it.Snippet.PublishedAt,
			thumbnail:   it.Snippet.Thumbnails.Medium.URL,
		})
	}
	return items, nil
}

// FetchLive returns the creator's currently-live broadcasts.
func (c *Client) FetchLive(ctx context.Context, creator model.Creator) ([]model.Event, error) {
	items, err := c.search(ctx, creator.YouTubeChannel, url.Values{"eventType": {"live"}})
	if err != nil {
		return nil, err
	}
	return normalize(items, creator, model.KindLive), nil
}

// FetchScheduled returns upcoming broadcasts with their confirmed scheduled
// start times. Search results only carry publishedAt, so each upcoming hit
// needs a videos.list detail call for liveStreamingDetails; starts already
// pinned in the schedule cache skip that round-trip.
func (c *Client) FetchScheduled(ctx context.Context, creator model.Creator, sched ScheduleCache) ([]model.Event, error) {
	items, err := c.search(ctx, creator.YouTubeChannel, url.Values{"eventType": {"upcoming"}})
	if err != nil {
		return nil, err
	}

	starts := make(map[string]time.Time, len(items))
	misses := make([]string, 0, len(items))
	for _, it := range items {
		if sched != nil {
			if t, ok := sched.ResolvedScheduleTime(it.videoID); ok {
				starts[it.videoID] = t
				continue
			}
			if sched.Seen(it.videoID) {
				// Already queried in a previous run and still unresolved;
				// don't spend another detail call on it.
				continue
			}
		}
		misses = append(misses, it.videoID)
	}

	if len(misses) > 0 {
		resolved, err := c.scheduledStarts(ctx, misses)
		if err != nil {
			return nil, err
		}
		for id, t := range resolved {
			starts[id] = t
			if sched != nil {
				sched.ResolveScheduleTime(id, t)
			}
		}
		if sched != nil {
			// Record the attempt for every miss, resolved or not.
			for _, id := range misses {
				sched.MarkSeen(id)
			}
		}
	}

	events := make([]model.Event, 0, len(items))
	for _, it := range items {
		// Placeholder slots without a title carry no information.
		if strings.TrimSpace(it.title) == "" {
			continue
		}
		start, ok := starts[it.videoID]
		if !ok || start.IsZero() {
			// No usable scheduled instant; drop rather than guess.
			continue
		}
		events = append(events, model.Event{
			Platform:     model.PlatformYouTube,
			CreatorID:    creator.ID,
			Kind:         model.KindScheduled,
			Title:        it.title,
			Permalink:    "https://youtu.be/" + it.videoID,
			OccursAt:     start.UTC(),
			ThumbnailURL: it.thumbnail,
			SourceItemID: it.videoID,
		})
	}
	return events, nil
}

// FetchRecent returns videos published at or after since (recent uploads
// and finished streams), normalized as archived events.
func (c *Client) FetchRecent(ctx context.Context, creator model.Creator, since time.Time) ([]model.Event, error) {
	items, err := c.search(ctx, creator.YouTubeChannel, url.Values{
		"publishedAfter": {since.UTC().Format(time.RFC3339)},
	})
	if err != nil {
		return nil, err
	}
	return normalize(items, creator, model.KindArchived), nil
}

// scheduledStarts resolves scheduled start instants for up to 50 video IDs
// in one videos.list call.
func (c *Client) scheduledStarts(ctx context.Context, videoIDs []string) (map[string]time.Time, error) {
	q := url.Values{}
	q.Set("part", "liveStreamingDetails")
	q.Set("id", strings.Join(videoIDs, ","))

	var body videosResponse
	if err := c.getJSON(ctx, "/videos", q, &body); err != nil {
		return nil, err
	}

	out := make(map[string]time.Time, len(body.Items))
	for _, it := range body.Items {
		t := it.LiveStreamingDetails.ScheduledStartTime
		if t.IsZero() {
			continue
		}
		out[it.ID] = t.UTC()
	}
	return out, nil
}

func normalize(items []rawItem, creator model.Creator, kind model.Kind) []model.Event {
	events := make([]model.Event, 0, len(items))
	for _, it := range items {
		if it.publishedAt.IsZero() {
			continue
		}
		events = append(events, model.Event{
			Platform:     model.PlatformYouTube,
			CreatorID:    creator.ID,
			Kind:         kind,
			Title:        it.title,
			Permalink:    "https://youtu.be/" + it.videoID,
			OccursAt:     it.publishedAt.UTC(),
			ThumbnailURL: it.thumbnail,
			SourceItemID: it.videoID,
		})
	}
	return events
}
