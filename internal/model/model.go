package model

import "time"

// Platform identifies which streaming service a record came from.
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// Kind is the lifecycle state of a broadcast record.
type Kind string

const (
	KindLive      Kind = "live"
	KindScheduled Kind = "scheduled"
	KindArchived  Kind = "archived"
)

// Priority orders kinds for deduplication: when the same broadcast is
// surfaced under two kinds, the higher-priority kind is retained.
// Live > Scheduled > Archived.
func (k Kind) Priority() int {
	switch k {
	case KindLive:
		return 3
	case KindScheduled:
		return 2
	case KindArchived:
		return 1
	default:
		return 0
	}
}

// Creator is one roster entry: a streamer tracked across both platforms.
// Either platform identifier may be empty, in which case that platform is
// skipped for this creator.
type Creator struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	TwitchUserLogin string `json:"twitch_user_login"`
	YouTubeChannel  string `json:"youtube_channel_id"`
	Avatar          string `json:"avatar"`
}

// Event is the canonical broadcast record produced by the normalizers.
// Events are immutable after creation; a schedule-time correction produces
// a replacement Event carrying the same SourceItemID.
type Event struct {
	Platform  Platform
	CreatorID string
	Kind      Kind

	// Title may be empty for records the platform surfaces without one
	// (bare schedule slots are dropped before they get here).
	Title string

	// Permalink may be empty for states lacking a stable link.
	Permalink string

	// OccursAt is the stream start (Live/Archived) or the scheduled start
	// (Scheduled), always UTC.
	OccursAt time.Time

	// ThumbnailURL is optional; platform size templates are resolved to
	// concrete dimensions before an Event is constructed.
	ThumbnailURL string

	// SourceItemID is the platform-native identifier, unique within
	// (platform, kind). It is the dedup and ledger key.
	SourceItemID string
}

// DayGroup buckets the events that fall on one local calendar day in the
// configured display timezone. Events are ordered ascending by OccursAt.
type DayGroup struct {
	// LocalDate is midnight of the calendar day in the display timezone.
	LocalDate time.Time
	Events    []Event
}
