// Package youtube fetches live, upcoming and recently-published broadcast
// records from the YouTube Data API v3 and normalizes them into canonical
// events. Upcoming items need a second detail call to resolve their true
// scheduled start; those resolutions are pinned in the cache ledger so the
// detail endpoint is queried at most once per video across runs.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jigdule/internal/errs"
)

const defaultAPIBase = "https://www.googleapis.com/youtube/v3"

// ScheduleCache is the slice of the cache ledger the adapter reads and
// writes: confirmed scheduled start times keyed by video ID, plus the set
// of IDs whose resolution was already attempted. Seen IDs with no pinned
// start stay unresolved; re-querying them every run would spend quota on
// the same answer.
type ScheduleCache interface {
	Seen(itemID string) bool
	MarkSeen(itemID string)
	ResolvedScheduleTime(itemID string) (time.Time, bool)
	ResolveScheduleTime(itemID string, t time.Time)
}

// Client is a minimal Data API v3 client.
type Client struct {
	http    *http.Client
	apiBase string
	apiKey  string
}

// Option customizes a Client. Used by tests to point at httptest servers.
type Option func(*Client)

// WithAPIBase overrides the Data API base URL.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

// NewClient creates a Data API client. timeout bounds each individual call.
func NewClient(apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		apiBase: defaultAPIBase,
		apiKey:  apiKey,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiError is the embedded error object the Data API returns on failure.
type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// getJSON performs a keyed GET against the Data API and decodes into out.
// Quota exhaustion (403), 429 and 5xx map to transient errors; other
// failures including embedded error objects map to upstream-logic errors.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", c.apiKey)
	endpoint := c.apiBase + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errs.Upstream("build request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errs.Transient("call timed out", err)
		}
		return errs.Transient("request failed", err)
	}
	defer resp.Body.Close()

	// The Data API reports failures both via status and via an embedded
	// error object; decode once and inspect both.
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return errs.Transientf("youtube %s returned %s", path, resp.Status)
		}
		return errs.Upstream("decode response", err)
	}

	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Error != nil {
		msg := fmt.Sprintf("youtube api error: %d %s", ae.Error.Code, ae.Error.Message)
		switch {
		case ae.Error.Code == http.StatusForbidden, ae.Error.Code == http.StatusTooManyRequests, ae.Error.Code >= 500:
			// 403 on this API is almost always quota exhaustion.
			return errs.Transientf("%s", msg)
		default:
			return errs.Upstreamf("%s", msg)
		}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return errs.Transientf("youtube %s returned %s", path, resp.Status)
		}
		return errs.Upstreamf("youtube %s returned %s", path, resp.Status)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Upstream("decode response", err)
	}
	return nil
}
