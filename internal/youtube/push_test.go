package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tunesync/tunesync/internal/batch"
)

func TestPushCreatesAndFills(t *testing.T) {
	var inserted []string
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer oauth-tok", r.Header.Get("Authorization"))
		var body struct {
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
			Status struct {
				PrivacyStatus string `json:"privacyStatus"`
			} `json:"status"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Road Trip", body.Snippet.Title)
		require.Equal(t, PrivacyUnlisted, body.Status.PrivacyStatus)
		json.NewEncoder(w).Encode(map[string]any{"id": "PL123"})
	})
	mux.HandleFunc("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Snippet struct {
				PlaylistID string `json:"playlistId"`
				ResourceID struct {
					VideoID string `json:"videoId"`
				} `json:"resourceId"`
			} `json:"snippet"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "PL123", body.Snippet.PlaylistID)
		if body.Snippet.ResourceID.VideoID == "bad" {
			http.Error(w, "video not found", http.StatusNotFound)
			return
		}
		inserted = append(inserted, body.Snippet.ResourceID.VideoID)
		json.NewEncoder(w).Encode(map[string]any{"id": "item"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient("", nil, WithHTTPClient(srv.Client()), WithAPIURL(srv.URL), WithToken("oauth-tok"))

	b := batch.Batch{Tracks: []batch.Track{
		{Key: "k1", Title: "One", VideoID: "v1"},
		{Key: "k2", Title: "Two", VideoID: "bad"},
		{Key: "k3", Title: "Three", VideoID: "v3"},
		{Key: "k4", Title: "Unresolved"},
	}}

	result, err := c.Push(context.Background(), b, "Road Trip", PrivacyUnlisted)
	require.NoError(t, err)

	require.Equal(t, "PL123", result.PlaylistID)
	require.Equal(t, PlaylistURL("PL123"), result.URL)
	require.Equal(t, 2, result.Added)
	require.Equal(t, []string{"bad"}, result.FailedIDs)
	require.Equal(t, []string{"v1", "v3"}, inserted, "batch order is preserved")
}

func TestPushWithNothingResolved(t *testing.T) {
	c := NewClient("", nil)
	_, err := c.Push(context.Background(), batch.Batch{Tracks: []batch.Track{{Key: "k1"}}}, "Empty", "")
	require.Error(t, err)
}
