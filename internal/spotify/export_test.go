package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tunesync/tunesync/internal/batch"
)

func TestExtractPlaylistID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123", "37i9dQZF1DXcBWIGoYBM5M"},
		{"spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M"},
		{"not a playlist", ""},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ExtractPlaylistID(tc.in), "input %q", tc.in)
	}
}

// newAPIServer stands in for both the accounts and API hosts.
func newAPIServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "id", user)
		require.Equal(t, "secret", pass)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(Credentials{ClientID: "id", ClientSecret: "secret"}, nil,
		WithHTTPClient(srv.Client()),
		WithAPIURL(srv.URL),
		WithTokenURL(srv.URL+"/api/token"))
}

func trackItem(id, name string, durMS int64, artists ...string) map[string]any {
	as := []map[string]any{}
	for _, a := range artists {
		as = append(as, map[string]any{"name": a})
	}
	return map[string]any{"track": map[string]any{
		"id": id, "name": name, "duration_ms": durMS, "artists": as,
		"album": map[string]any{
			"name": "Album",
			"images": []map[string]any{
				{"url": "https://img/small", "width": 64, "height": 64},
				{"url": "https://img/large", "width": 640, "height": 640},
			},
		},
		"external_urls": map[string]any{"spotify": "https://open.spotify.com/track/" + id},
	}}
}

func TestExportWalksAllPages(t *testing.T) {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		page := map[string]any{}
		if r.URL.Query().Get("offset") == "" {
			page["items"] = []map[string]any{
				trackItem("t1", "First", 200000, "Artist A"),
				trackItem("t2", "Second", 180000, "Artist B", "Artist C"),
			}
			page["next"] = base + "/playlists/pl1/tracks?offset=2"
		} else {
			local := trackItem("", "Local File", 1000, "Someone")
			local["track"].(map[string]any)["is_local"] = true
			page["items"] = []map[string]any{
				trackItem("t3", "Third", 210000, "Artist D"),
				local,
			}
		}
		json.NewEncoder(w).Encode(page)
	})

	c := newAPIServer(t, mux)
	base = c.apiURL

	b, err := c.Export(context.Background(), "pl1")
	require.NoError(t, err)

	require.Equal(t, batch.SchemaVersion, b.SchemaVersion)
	require.Len(t, b.Tracks, 3, "local files are skipped")

	first := b.Tracks[0]
	require.Equal(t, "t1", first.Key, "spotify id becomes the track key")
	require.Equal(t, "First", first.Title)
	require.Equal(t, []string{"Artist A"}, first.Artists)
	require.Equal(t, "Album", first.Album)
	require.EqualValues(t, 200000, first.DurationMS)
	require.Equal(t, "https://img/large", first.ArtworkURL, "largest image wins")
	require.Equal(t, "https://open.spotify.com/track/t1", first.SpotifyURL)
	require.Equal(t, batch.StatusPending, first.State.Status)

	require.Equal(t, []string{"Artist B", "Artist C"}, b.Tracks[1].Artists)
}

func TestExportRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{trackItem("t1", "Only", 100000, "A")},
		})
	})

	c := newAPIServer(t, mux)
	b, err := c.Export(context.Background(), "pl1")
	require.NoError(t, err)
	require.Len(t, b.Tracks, 1)
	require.EqualValues(t, 2, hits.Load())
}

func TestExportSurfacesAPIErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/playlists/gone/tracks", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	c := newAPIServer(t, mux)
	_, err := c.Export(context.Background(), "gone")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestPlaylistsListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/me123/playlists", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"items":[{"id":"pl1","name":"Road Trip","tracks":{"total":42}}],"next":""}`)
	})

	c := newAPIServer(t, mux)
	pls, err := c.Playlists(context.Background(), "me123")
	require.NoError(t, err)
	require.Equal(t, []Playlist{{ID: "pl1", Name: "Road Trip", Tracks: 42}}, pls)
}
