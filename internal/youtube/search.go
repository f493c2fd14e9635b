package youtube

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tunesync/tunesync/internal/batch"
)

// searchLimit is how many candidates one lookup considers.
const searchLimit = 5

// durationTolerance is how far a candidate's runtime may drift from the
// catalog duration before a closer candidate is preferred outright.
const durationTolerance = 10 * time.Second

// titleSuffixes hurt search relevance and are stripped before querying.
var titleSuffixes = []string{
	" - Remaster", " - 2005 Remaster", " - Remix", " - Radio Version",
	" - Original Version", " - LP Mix", " - Extended Version",
}

// BuildQuery turns a catalog track into a "Artist Title" search string.
func BuildQuery(t batch.Track) string {
	title := t.Title
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(title, suffix) {
			title = strings.TrimSuffix(title, suffix)
			break
		}
	}
	if artist := t.PrimaryArtist(); artist != "" {
		return strings.TrimSpace(artist + " " + title)
	}
	return strings.TrimSpace(title)
}

// Candidate is one search hit with enough detail to score.
type Candidate struct {
	VideoID    string
	Title      string
	Channel    string
	DurationMS int64
}

// Match picks the candidate whose runtime sits closest to the wanted
// duration. With no duration on record the first hit wins, matching search
// ranking. Returns false when there is nothing to pick.
func Match(candidates []Candidate, wantedMS int64) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	if wantedMS <= 0 {
		return candidates[0], true
	}

	best := candidates[0]
	bestDiff := durationDiff(best.DurationMS, wantedMS)
	for _, c := range candidates[1:] {
		if d := durationDiff(c.DurationMS, wantedMS); d < bestDiff {
			best, bestDiff = c, d
		}
	}
	// The top-ranked hit keeps priority unless a later one is meaningfully
	// closer in runtime.
	topDiff := durationDiff(candidates[0].DurationMS, wantedMS)
	if topDiff <= durationTolerance.Milliseconds() {
		return candidates[0], true
	}
	return best, true
}

func durationDiff(a, b int64) int64 {
	if a <= 0 {
		// Unknown runtime ranks behind any known one.
		return 1 << 40
	}
	if a > b {
		return a - b
	}
	return b - a
}

type apiSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type apiVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Search runs one query and returns candidates with runtimes attached.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	q := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"maxResults": {strconv.Itoa(searchLimit)},
		"q":          {query},
		"key":        {c.apiKey},
	}
	var sr apiSearchResponse
	if err := c.do(ctx, "GET", c.apiURL+"/search?"+q.Encode(), nil, &sr); err != nil {
		return nil, fmt.Errorf("search %q failed: %w", query, err)
	}
	if len(sr.Items) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(sr.Items))
	ids := make([]string, 0, len(sr.Items))
	for _, it := range sr.Items {
		if it.ID.VideoID == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			VideoID: it.ID.VideoID,
			Title:   it.Snippet.Title,
			Channel: it.Snippet.ChannelTitle,
		})
		ids = append(ids, it.ID.VideoID)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Search results carry no runtime; a second call fills it in.
	vq := url.Values{
		"part": {"contentDetails"},
		"id":   {strings.Join(ids, ",")},
		"key":  {c.apiKey},
	}
	var vr apiVideosResponse
	if err := c.do(ctx, "GET", c.apiURL+"/videos?"+vq.Encode(), nil, &vr); err != nil {
		return nil, fmt.Errorf("video details failed: %w", err)
	}
	durations := make(map[string]int64, len(vr.Items))
	for _, it := range vr.Items {
		durations[it.ID] = ParseISODuration(it.ContentDetails.Duration).Milliseconds()
	}
	for i := range candidates {
		candidates[i].DurationMS = durations[candidates[i].VideoID]
	}
	return candidates, nil
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISODuration reads the Data API's ISO 8601 runtime (PT4M13S). Malformed
// input parses as zero.
func ParseISODuration(s string) time.Duration {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	return time.Duration(h)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
}

// EnrichStats summarizes one enrichment pass.
type EnrichStats struct {
	Matched int
	Missed  int
	Skipped int // already had a video attached
}

// Enrich resolves a video for every track that lacks one, writing matches
// through the store. Lookups run concurrently, bounded by workers.
func (c *Client) Enrich(ctx context.Context, store *batch.Store, workers int) (EnrichStats, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu    sync.Mutex
		stats EnrichStats
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	snap := store.Snapshot()
	for i := range snap.Tracks {
		track := snap.Tracks[i]
		if track.HasVideo() {
			stats.Skipped++
			continue
		}
		g.Go(func() error {
			candidates, err := c.Search(ctx, BuildQuery(track))
			if err != nil {
				return err
			}
			match, ok := Match(candidates, track.DurationMS)

			mu.Lock()
			defer mu.Unlock()
			if !ok {
				stats.Missed++
				c.log.Warn("no video found", zap.String("track", track.DisplayName()))
				return nil
			}
			stats.Matched++
			c.log.Debug("video matched",
				zap.String("track", track.DisplayName()),
				zap.String("video", match.VideoID),
				zap.String("video_title", match.Title))
			return store.SetVideo(track.Key, match.VideoID)
		})
	}

	err := g.Wait()
	return stats, err
}
