package tag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/stretchr/testify/require"

	"github.com/tunesync/tunesync/internal/batch"
)

// emptyID3v2Header is a valid zero-length ID3v2.4 tag.
var emptyID3v2Header = []byte("ID3\x04\x00\x00\x00\x00\x00\x00")

func writeTaggableFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	data := append(append([]byte(nil), emptyID3v2Header...), make([]byte, 4096)...)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestTagWritesTextFrames(t *testing.T) {
	path := writeTaggableFile(t)
	track := batch.Track{
		Key:        "k1",
		Title:      "Song",
		Artists:    []string{"First", "Second"},
		Album:      "Record",
		DurationMS: 215000,
		SpotifyURL: "https://open.spotify.com/track/abc",
	}

	tagger := New(nil, nil)
	require.NoError(t, tagger.Tag(context.Background(), track, path))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	require.Equal(t, "Song", tag.Title())
	require.Equal(t, "First; Second", tag.Artist())
	require.Equal(t, "Record", tag.Album())
	require.Equal(t, "215000", tag.GetTextFrame("TLEN").Text)
}

func TestTagEmbedsArtwork(t *testing.T) {
	artwork := append([]byte("\xff\xd8\xff\xe0"), make([]byte, 128)...) // JPEG magic
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(artwork)
	}))
	defer srv.Close()

	path := writeTaggableFile(t)
	track := batch.Track{Key: "k1", Title: "Song", Artists: []string{"A"}, ArtworkURL: srv.URL}

	tagger := New(NewArtworkClient(srv.Client(), nil), nil)
	require.NoError(t, tagger.Tag(context.Background(), track, path))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	frames := tag.GetFrames(tag.CommonID("Attached picture"))
	require.Len(t, frames, 1)
	pic, ok := frames[0].(id3v2.PictureFrame)
	require.True(t, ok)
	require.Equal(t, artwork, pic.Picture)
	require.Equal(t, "image/jpeg", pic.MimeType)
}

func TestTagSurvivesArtworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	path := writeTaggableFile(t)
	track := batch.Track{Key: "k1", Title: "Song", Artists: []string{"A"}, ArtworkURL: srv.URL}

	tagger := New(NewArtworkClient(srv.Client(), nil), nil)
	require.NoError(t, tagger.Tag(context.Background(), track, path))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()
	require.Equal(t, "Song", tag.Title())
	require.Empty(t, tag.GetFrames(tag.CommonID("Attached picture")))
}

func TestArtworkClientRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	c := NewArtworkClient(srv.Client(), nil)
	data, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []byte("image-bytes"), data)
	require.EqualValues(t, 2, hits.Load())
}

func TestArtworkClientDoesNotRetryHardErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewArtworkClient(srv.Client(), nil)
	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.EqualValues(t, 1, hits.Load())
}
