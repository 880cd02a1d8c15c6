package twitch

import (
	"context"
	"net/url"
	"strings"
	"time"

	"jigdule/internal/model"
)

// Thumbnail dimensions substituted into Helix size templates.
const (
	thumbWidth  = "320"
	thumbHeight = "180"
)

// streamsResponse is the /streams payload slice we care about.
type streamsResponse struct {
	Data []struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		StartedAt    time.Time `json:"started_at"`
		ThumbnailURL string    `json:"thumbnail_url"`
	} `json:"data"`
}

// scheduleResponse is the /schedule payload slice we care about.
type scheduleResponse struct {
	Data struct {
		Segments []struct {
			ID        string    `json:"id"`
			Title     string    `json:"title"`
			StartTime time.Time `json:"start_time"`
			Canceled  *string   `json:"canceled_until"`
		} `json:"segments"`
	} `json:"data"`
}

// videosResponse is the /videos payload slice we care about.
type videosResponse struct {
	Data []struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		URL          string    `json:"url"`
		CreatedAt    time.Time `json:"created_at"`
		ThumbnailURL string    `json:"thumbnail_url"`
	} `json:"data"`
}

// FetchLive returns the creator's current live broadcast, or nil when the
// creator is offline.
func (c *Client) FetchLive(ctx context.Context, creator model.Creator) (*model.Event, error) {
	q := url.Values{}
	q.Set("user_login", creator.TwitchUserLogin)

	var body streamsResponse
	if err := c.getJSON(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}

	s := body.Data[0]
	if s.StartedAt.IsZero() {
		// A live entry without a start instant carries no usable time.
		return nil, nil
	}

	ev := model.Event{
		Platform:     model.PlatformTwitch,
		CreatorID:    creator.ID,
		Kind:         model.KindLive,
		Title:        s.Title,
		Permalink:    "https://twitch.tv/" + creator.TwitchUserLogin,
		OccursAt:     s.StartedAt.UTC(),
		ThumbnailURL: resolveThumbnail(s.ThumbnailURL),
		SourceItemID: s.ID,
	}
	return &ev, nil
}

// FetchScheduled returns upcoming schedule segments. Segments without a
// title are placeholder slots and are dropped; canceled segments are
// skipped.
func (c *Client) FetchScheduled(ctx context.Context, creator model.Creator) ([]model.Event, error) {
	userID, err := c.userID(ctx, creator.TwitchUserLogin)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("broadcaster_id", userID)

	var body scheduleResponse
	if err := c.getJSON(ctx, "/schedule", q, &body); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(body.Data.Segments))
	for _, seg := range body.Data.Segments {
		if strings.TrimSpace(seg.Title) == "" {
			continue
		}
		if seg.Canceled != nil {
			continue
		}
		if seg.StartTime.IsZero() {
			continue
		}
		events = append(events, model.Event{
			Platform:     model.PlatformTwitch,
			CreatorID:    creator.ID,
			Kind:         model.KindScheduled,
			Title:        seg.Title,
			// Schedule slots have no stable per-segment page.
			Permalink:    "",
			OccursAt:     seg.StartTime.UTC(),
			SourceItemID: seg.ID,
		})
	}
	return events, nil
}

// FetchArchived returns recent VODs started at or after since.
func (c *Client) FetchArchived(ctx context.Context, creator model.Creator, since time.Time) ([]model.Event, error) {
	userID, err := c.userID(ctx, creator.TwitchUserLogin)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("first", "5")
	q.Set("broadcast_type", "archive")
	q.Set("started_at", since.UTC().Format(time.RFC3339))

	var body videosResponse
	if err := c.getJSON(ctx, "/videos", q, &body); err != nil {
		return nil, err
	}

	events := make([]model.Event, 0, len(body.Data))
	for _, v := range body.Data {
		if v.CreatedAt.IsZero() {
			continue
		}
		events = append(events, model.Event{
			Platform:     model.PlatformTwitch,
			CreatorID:    creator.ID,
			Kind:         model.KindArchived,
			Title:        v.Title,
			Permalink:    v.URL,
			OccursAt:     v.CreatedAt.UTC(),
			ThumbnailURL: resolveThumbnail(v.ThumbnailURL),
			SourceItemID: v.ID,
		})
	}
	return events, nil
}

// resolveThumbnail substitutes Helix {width}/{height} size templates with
// concrete dimensions. Helix also emits %{width} variants for VODs.
func resolveThumbnail(u string) string {
	if u == "" {
		return ""
	}
	r := strings.NewReplacer(
		"%{width}", thumbWidth,
		"%{height}", thumbHeight,
		"{width}", thumbWidth,
		"{height}", thumbHeight,
	)
	return r.Replace(u)
}
