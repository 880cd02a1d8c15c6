package twitch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jigdule/internal/errs"
	"jigdule/internal/model"
)

var testCreator = model.Creator{
	ID:              "c1",
	Name:            "Example",
	TwitchUserLogin: "example_streamer",
}

// newTestClient wires a Client against an httptest server handling both
// the OAuth and the Helix surface.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("cid", "secret", 5*time.Second, WithAPIBase(srv.URL), WithAuthBase(srv.URL))
}

func authOK(mux *http.ServeMux) {
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok"}`))
	})
}

func TestAuthenticate(t *testing.T) {
	mux := http.NewServeMux()
	authOK(mux)
	c := newTestClient(t, mux)

	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if c.token != "tok" {
		t.Fatalf("token = %q, want tok", c.token)
	}
}

func TestAuthenticate_Failure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})
	c := newTestClient(t, mux)

	err := c.Authenticate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errs.HasCode(err, errs.CodeAuth) {
		t.Fatalf("error code = %v, want AUTH", err)
	}
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	c := NewClient("", "", time.Second)
	err := c.Authenticate(context.Background())
	if !errs.HasCode(err, errs.CodeAuth) {
		t.Fatalf("error = %v, want AUTH", err)
	}
}

func TestFetchLive(t *testing.T) {
	mux := http.NewServeMux()
	authOK(mux)
	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_login"); got != "example_streamer" {
			t.Errorf("user_login = %q", got)
		}
		w.Write([]byte(`{"data":[{
			"id":"42",
			"title":"morning stream",
			"started_at":"2024-01-10T10:00:00Z",
			"thumbnail_url":"https://cdn.example/thumb-{width}x{height}.jpg"
		}]}`))
	})
	c := newTestClient(t, mux)

	ev, err := c.FetchLive(context.Background(), testCreator)
	if err != nil {
		t.Fatalf("FetchLive failed: %v", err)
	}
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.Kind != model.KindLive || ev.Platform != model.PlatformTwitch {
		t.Fatalf("unexpected event shape: %+v", ev)
	}
	if ev.ThumbnailURL != "https://cdn.example/thumb-320x180.jpg" {
		t.Fatalf("thumbnail template not resolved: %q", ev.ThumbnailURL)
	}
	if ev.Permalink != "https://twitch.tv/example_streamer" {
		t.Fatalf("permalink = %q", ev.Permalink)
	}
	want := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	if !ev.OccursAt.Equal(want) {
		t.Fatalf("occursAt = %v, want %v", ev.OccursAt, want)
	}
}

func TestFetchLive_Offline(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})
	c := newTestClient(t, mux)

	ev, err := c.FetchLive(context.Background(), testCreator)
	if err != nil {
		t.Fatalf("FetchLive failed: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected nil event, got %+v", ev)
	}
}

func TestFetchScheduled_DropsBlankAndCanceledSegments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"999"}]}`))
	})
	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("broadcaster_id"); got != "999" {
			t.Errorf("broadcaster_id = %q", got)
		}
		w.Write([]byte(`{"data":{"segments":[
			{"id":"s1","title":"collab","start_time":"2024-01-12T20:00:00Z","canceled_until":null},
			{"id":"s2","title":"   ","start_time":"2024-01-13T20:00:00Z","canceled_until":null},
			{"id":"s3","title":"canceled one","start_time":"2024-01-14T20:00:00Z","canceled_until":"2024-01-14T20:00:00Z"}
		]}}`))
	})
	c := newTestClient(t, mux)

	events, err := c.FetchScheduled(context.Background(), testCreator)
	if err != nil {
		t.Fatalf("FetchScheduled failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1: %+v", len(events), events)
	}
	if events[0].SourceItemID != "s1" || events[0].Kind != model.KindScheduled {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if events[0].Permalink != "" {
		t.Fatalf("schedule slots must have no permalink, got %q", events[0].Permalink)
	}
}

func TestFetchArchived_CachesUserIDLookup(t *testing.T) {
	userCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		userCalls++
		w.Write([]byte(`{"data":[{"id":"999"}]}`))
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{
			"id":"v1",
			"title":"yesterday vod",
			"url":"https://twitch.tv/videos/v1",
			"created_at":"2024-01-09T20:00:00Z",
			"thumbnail_url":"https://cdn.example/vod-%{width}x%{height}.jpg"
		}]}`))
	})
	mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"segments":[]}}`))
	})
	c := newTestClient(t, mux)

	since := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	events, err := c.FetchArchived(context.Background(), testCreator, since)
	if err != nil {
		t.Fatalf("FetchArchived failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].ThumbnailURL != "https://cdn.example/vod-320x180.jpg" {
		t.Fatalf("vod thumbnail template not resolved: %q", events[0].ThumbnailURL)
	}

	// A second call needing the user ID must reuse the cached lookup.
	if _, err := c.FetchScheduled(context.Background(), testCreator); err != nil {
		t.Fatalf("FetchScheduled failed: %v", err)
	}
	if userCalls != 1 {
		t.Fatalf("user lookup called %d times, want 1", userCalls)
	}
}

func TestGetJSON_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   errs.Code
	}{
		{"server error is transient", http.StatusInternalServerError, errs.CodeTransientAPI},
		{"rate limit is transient", http.StatusTooManyRequests, errs.CodeTransientAPI},
		{"bad request is upstream", http.StatusBadRequest, errs.CodeUpstreamLogic},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", tc.status)
			})
			c := newTestClient(t, mux)

			_, err := c.FetchLive(context.Background(), testCreator)
			if !errs.HasCode(err, tc.want) {
				t.Fatalf("error = %v, want code %s", err, tc.want)
			}
		})
	}
}

func TestGetJSON_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/streams", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchLive(ctx, testCreator)
	if !errs.HasCode(err, errs.CodeTransientAPI) {
		t.Fatalf("error = %v, want TRANSIENT_API", err)
	}
}
