// Package spotify exports playlist contents from the Spotify Web API into
// the persisted batch format the rest of the pipeline consumes.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/vfaronov/httpheader"
	"go.uber.org/zap"
)

const (
	DefaultAPIURL   = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	// pageLimit is the Web API maximum page size for playlist items.
	pageLimit = 100
)

var (
	playlistIDPattern = regexp.MustCompile(`playlist[/:]([A-Za-z0-9]+)`)
	bareIDPattern     = regexp.MustCompile(`^[A-Za-z0-9]{16,}$`)
)

// ExtractPlaylistID accepts a share URL, a spotify: URI or a bare playlist ID
// and returns the ID, or "" when none can be found.
func ExtractPlaylistID(input string) string {
	input = strings.TrimSpace(input)
	if m := playlistIDPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if bareIDPattern.MatchString(input) {
		return input
	}
	return ""
}

// Credentials is a Spotify application id/secret pair.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client talks to the Spotify Web API using the client-credentials flow.
// Tokens are cached until shortly before expiry.
type Client struct {
	http     *http.Client
	log      *zap.Logger
	apiURL   string
	tokenURL string
	creds    Credentials

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// Option tweaks a Client, mostly for tests.
type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithAPIURL(u string) Option           { return func(c *Client) { c.apiURL = u } }
func WithTokenURL(u string) Option         { return func(c *Client) { c.tokenURL = u } }

// NewClient builds an API client. log may be nil.
func NewClient(creds Credentials, log *zap.Logger, opts ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      log,
		apiURL:   DefaultAPIURL,
		tokenURL: DefaultTokenURL,
		creds:    creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.creds.ClientID, c.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	c.accessToken = body.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - 30*time.Second)
	return c.accessToken, nil
}

// getJSON performs one authenticated GET and decodes the response into out.
// 429 responses are retried once after the server-mandated wait.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	for attempt := 0; ; attempt++ {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := time.Second
			if after := httpheader.RetryAfter(resp.Header); !after.IsZero() {
				if d := time.Until(after); d > wait {
					wait = d
				}
			}
			resp.Body.Close()
			c.log.Warn("spotify rate limited", zap.Duration("wait", wait))
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
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("spotify returned status %d for %s", resp.StatusCode, rawURL)
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
}
