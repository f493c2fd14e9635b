// Package youtube matches catalog tracks to YouTube videos and pushes
// finished selections into a YouTube playlist, via the Data API v3.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vfaronov/httpheader"
	"go.uber.org/zap"
)

const DefaultAPIURL = "https://www.googleapis.com/youtube/v3"

// Client calls the YouTube Data API. Read operations authenticate with an
// API key; playlist writes need an OAuth bearer token.
type Client struct {
	http   *http.Client
	log    *zap.Logger
	apiURL string
	apiKey string
	token  string
}

// Option tweaks a Client, mostly for tests.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithAPIURL(u string) Option           { return func(c *Client) { c.apiURL = u } }
func WithToken(tok string) Option          { return func(c *Client) { c.token = tok } }

// NewClient builds a Data API client. log may be nil.
func NewClient(apiKey string, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    log,
		apiURL: DefaultAPIURL,
		apiKey: apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs one API call, decoding the response into out when non-nil.
// A single 429 or quota 403 is retried after the server-mandated wait.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := 2 * time.Second
			if after := httpheader.RetryAfter(resp.Header); !after.IsZero() {
				if d := time.Until(after); d > wait {
					wait = d
				}
			}
			resp.Body.Close()
			c.log.Warn("youtube rate limited", zap.Duration("wait", wait))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("youtube returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		}
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
}
