package tag

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vfaronov/httpheader"
	"go.uber.org/zap"
)

const (
	// maxArtworkSize caps how much image data we are willing to embed.
	maxArtworkSize = 4 << 20

	artworkAttempts  = 3
	artworkRetryWait = 2 * time.Second
)

// ArtworkClient downloads cover images for embedding. Transient upstream
// responses are retried, honoring Retry-After when the CDN sends one.
type ArtworkClient struct {
	http *http.Client
	log  *zap.Logger
}

// NewArtworkClient builds a client. httpClient and log may be nil.
func NewArtworkClient(httpClient *http.Client, log *zap.Logger) *ArtworkClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ArtworkClient{http: httpClient, log: log}
}

// Fetch downloads the image at url.
func (c *ArtworkClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= artworkAttempts; attempt++ {
		data, wait, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if wait <= 0 {
			return nil, err
		}
		c.log.Debug("artwork fetch retrying",
			zap.String("url", url),
			zap.Duration("wait", wait),
			zap.Error(err))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single request. A positive wait means the failure is
// worth retrying after that long.
func (c *ArtworkClient) fetchOnce(ctx context.Context, url string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, artworkRetryWait, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkSize))
		if err != nil {
			return nil, artworkRetryWait, fmt.Errorf("failed to read artwork body: %w", err)
		}
		return data, 0, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		wait := artworkRetryWait
		if after := httpheader.RetryAfter(resp.Header); !after.IsZero() {
			if d := time.Until(after); d > wait {
				wait = d
			}
		}
		return nil, wait, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)

	default:
		return nil, 0, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}
}
