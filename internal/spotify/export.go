package spotify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
)

// Playlist is the catalog view of one playlist, enough to list and select.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks int    `json:"tracks"`
}

type apiPlaylistPage struct {
	Items []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	} `json:"items"`
	Next string `json:"next"`
}

type apiTrackPage struct {
	Items []struct {
		Track struct {
			ID         string `json:"id"`
			Name       string `json:"name"`
			DurationMS int64  `json:"duration_ms"`
			Artists    []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Name   string     `json:"name"`
				Images []apiImage `json:"images"`
			} `json:"album"`
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
			IsLocal bool `json:"is_local"`
		} `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

// Playlists lists the playlists of the user identified by userID.
func (c *Client) Playlists(ctx context.Context, userID string) ([]Playlist, error) {
	var out []Playlist
	next := fmt.Sprintf("%s/users/%s/playlists?limit=50", c.apiURL, userID)
	for next != "" {
		var page apiPlaylistPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}
		for _, it := range page.Items {
			out = append(out, Playlist{ID: it.ID, Name: it.Name, Tracks: it.Tracks.Total})
		}
		next = page.Next
	}
	return out, nil
}

// Export walks all pages of a playlist and returns its tracks as a fresh
// batch, every track pending. Local files and podcast episodes carry no
// usable catalog record and are skipped.
func (c *Client) Export(ctx context.Context, playlistID string) (*batch.Batch, error) {
	b := &batch.Batch{SchemaVersion: batch.SchemaVersion}
	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d", c.apiURL, playlistID, pageLimit)
	pages := 0

	for next != "" {
		var page apiTrackPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to export playlist %s: %w", playlistID, err)
		}
		pages++

		for _, it := range page.Items {
			t := it.Track
			if t.IsLocal || t.Name == "" {
				continue
			}
			artists := make([]string, 0, len(t.Artists))
			for _, a := range t.Artists {
				artists = append(artists, a.Name)
			}
			track := batch.Track{
				Title:      t.Name,
				Artists:    artists,
				Album:      t.Album.Name,
				DurationMS: t.DurationMS,
				ArtworkURL: largestImage(t.Album.Images),
				SpotifyID:  t.ID,
				SpotifyURL: t.ExternalURLs.Spotify,
				State:      batch.DownloadState{Status: batch.StatusPending},
			}
			track.EnsureKey()
			b.Tracks = append(b.Tracks, track)
		}
		next = page.Next
	}

	c.log.Info("playlist exported",
		zap.String("playlist", playlistID),
		zap.Int("tracks", len(b.Tracks)),
		zap.Int("pages", pages))
	return b, nil
}

type apiImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func largestImage(images []apiImage) string {
	best := ""
	bestArea := -1
	for _, img := range images {
		if area := img.Width * img.Height; area > bestArea {
			best, bestArea = img.URL, area
		}
	}
	return best
}
