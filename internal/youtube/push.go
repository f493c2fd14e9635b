package youtube

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
)

// Privacy values accepted by the playlists endpoint.
const (
	PrivacyPrivate  = "private"
	PrivacyUnlisted = "unlisted"
	PrivacyPublic   = "public"
)

// PlaylistURL renders the share link for a playlist id.
func PlaylistURL(id string) string {
	return "https://www.youtube.com/playlist?list=" + id
}

// PushResult reports one playlist push.
type PushResult struct {
	PlaylistID string
	URL        string
	Added      int
	FailedIDs  []string
}

// CreatePlaylist creates an empty playlist and returns its id.
func (c *Client) CreatePlaylist(ctx context.Context, title, privacy string) (string, error) {
	if privacy == "" {
		privacy = PrivacyPrivate
	}
	body := map[string]any{
		"snippet": map[string]any{
			"title":       title,
			"description": "Created by tunesync",
		},
		"status": map[string]any{"privacyStatus": privacy},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "POST", c.apiURL+"/playlists?part=snippet,status", body, &resp); err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("playlist create response carried no id")
	}
	return resp.ID, nil
}

// AddVideo appends one video to a playlist.
func (c *Client) AddVideo(ctx context.Context, playlistID, videoID string) error {
	body := map[string]any{
		"snippet": map[string]any{
			"playlistId": playlistID,
			"resourceId": map[string]any{
				"kind":    "youtube#video",
				"videoId": videoID,
			},
		},
	}
	if err := c.do(ctx, "POST", c.apiURL+"/playlistItems?part=snippet", body, nil); err != nil {
		return fmt.Errorf("failed to add video %s: %w", videoID, err)
	}
	return nil
}

// Push creates a playlist named title and fills it with every resolved video
// in the batch, in batch order. Individual insert failures are collected, not
// fatal: the playlist is worth keeping even when some items bounce.
func (c *Client) Push(ctx context.Context, b batch.Batch, title, privacy string) (PushResult, error) {
	var videoIDs []string
	for i := range b.Tracks {
		if b.Tracks[i].HasVideo() {
			videoIDs = append(videoIDs, b.Tracks[i].VideoID)
		}
	}
	if len(videoIDs) == 0 {
		return PushResult{}, fmt.Errorf("no resolved videos to push")
	}

	playlistID, err := c.CreatePlaylist(ctx, title, privacy)
	if err != nil {
		return PushResult{}, err
	}
	result := PushResult{PlaylistID: playlistID, URL: PlaylistURL(playlistID)}
	c.log.Info("playlist created", zap.String("playlist", playlistID), zap.Int("videos", len(videoIDs)))

	for _, id := range videoIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := c.AddVideo(ctx, playlistID, id); err != nil {
			result.FailedIDs = append(result.FailedIDs, id)
			c.log.Warn("failed to add video", zap.String("video", id), zap.Error(err))
			continue
		}
		result.Added++
	}
	return result, nil
}
