// Package twitch fetches live, scheduled and archived broadcast records
// from the Twitch Helix API and normalizes them into canonical events.
package twitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jigdule/internal/errs"
)

const (
	defaultAPIBase  = "https://api.twitch.tv/helix"
	defaultAuthBase = "https://id.twitch.tv"
)

// Client is a minimal Helix API client. It holds an app access token
// acquired once per run via the client-credentials grant.
type Client struct {
	http     *http.Client
	apiBase  string
	authBase string

	clientID     string
	clientSecret string

	mu    sync.Mutex
	token string
	// userIDs caches login -> broadcaster ID lookups; schedule and video
	// queries both need the ID, and it never changes within a run.
	userIDs map[string]string
}

// Option customizes a Client. Used by tests to point at httptest servers.
type Option func(*Client)

// WithAPIBase overrides the Helix API base URL.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

// WithAuthBase overrides the OAuth base URL.
func WithAuthBase(base string) Option {
	return func(c *Client) { c.authBase = strings.TrimRight(base, "/") }
}

// NewClient creates a Helix client. timeout bounds each individual call.
func NewClient(clientID, clientSecret string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		http:         &http.Client{Timeout: timeout},
		apiBase:      defaultAPIBase,
		authBase:     defaultAuthBase,
		clientID:     clientID,
		clientSecret: clientSecret,
		userIDs:      make(map[string]string),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Authenticate acquires an app access token. Failure here is fatal to the
// run: no Helix call can proceed without a token.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.clientID == "" || c.clientSecret == "" {
		return errs.Auth("twitch credentials missing", nil)
	}

	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("client_secret", c.clientSecret)
	q.Set("grant_type", "client_credentials")

	endpoint := c.authBase + "/oauth2/token?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return errs.Auth("build token request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Auth("token request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.Auth(fmt.Sprintf("token endpoint returned %s", resp.Status), nil)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errs.Auth("decode token response", err)
	}
	if body.AccessToken == "" {
		return errs.Auth("token response has no access_token", nil)
	}

	c.mu.Lock()
	c.token = body.AccessToken
	c.mu.Unlock()
	return nil
}

// getJSON performs an authenticated Helix GET and decodes the response
// into out. Status and transport failures are mapped onto the error
// taxonomy: network trouble, timeouts, 429 and 5xx are transient; other
// non-2xx statuses and decode failures are upstream-logic errors.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	endpoint := c.apiBase + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errs.Upstream("build request", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errs.Transient("call timed out", err)
		}
		return errs.Transient("request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return errs.Transientf("helix %s returned %s", path, resp.Status)
	default:
		io.Copy(io.Discard, resp.Body)
		return errs.Upstreamf("helix %s returned %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Upstream("decode response", err)
	}
	return nil
}

// userID resolves a login to a broadcaster ID, caching the result for the
// lifetime of the client.
func (c *Client) userID(ctx context.Context, login string) (string, error) {
	c.mu.Lock()
	if id, ok := c.userIDs[login]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	q := url.Values{}
	q.Set("login", login)

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/users", q, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 || body.Data[0].ID == "" {
		return "", errs.Upstreamf("no twitch user for login %q", login)
	}

	id := body.Data[0].ID
	c.mu.Lock()
	c.userIDs[login] = id
	c.mu.Unlock()
	return id, nil
}
