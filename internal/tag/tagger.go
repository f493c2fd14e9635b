// Package tag embeds ID3 metadata into finished audio files: title, artists,
// album, duration and cover art pulled from the catalog record. Tagging runs
// after a download completes and its failure never undoes the download.
package tag

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2"
	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
)

// artistSeparator joins multiple artists into the TPE1 frame.
const artistSeparator = "; "

// Tagger writes ID3v2 frames into downloaded MP3 files.
type Tagger struct {
	art *ArtworkClient
	log *zap.Logger
}

// New builds a tagger. art and log may be nil; without an artwork client no
// cover art is embedded.
func New(art *ArtworkClient, log *zap.Logger) *Tagger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tagger{art: art, log: log}
}

// NewDefault builds a tagger with a stock artwork client.
func NewDefault(log *zap.Logger) *Tagger {
	return New(NewArtworkClient(&http.Client{Timeout: 30 * time.Second}, log), log)
}

// Tag writes the track's metadata into the file at filePath. A missing or
// unfetchable cover image degrades to text-only tags rather than failing.
func (t *Tagger) Tag(ctx context.Context, track batch.Track, filePath string) error {
	tag, err := id3v2.Open(filePath, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open %s for tagging: %w", filePath, err)
	}
	defer tag.Close()

	tag.SetTitle(track.Title)
	tag.SetArtist(strings.Join(track.Artists, artistSeparator))
	if track.Album != "" {
		tag.SetAlbum(track.Album)
	}
	if track.DurationMS > 0 {
		tag.AddTextFrame("TLEN", id3v2.EncodingUTF8, strconv.FormatInt(track.DurationMS, 10))
	}
	if track.SpotifyURL != "" {
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding:    id3v2.EncodingUTF8,
			Language:    "eng",
			Description: "source",
			Text:        track.SpotifyURL,
		})
	}

	t.embedArtwork(ctx, tag, track)

	if err := tag.Save(); err != nil {
		return fmt.Errorf("failed to save tags for %s: %w", filePath, err)
	}
	return nil
}

func (t *Tagger) embedArtwork(ctx context.Context, tag *id3v2.Tag, track batch.Track) {
	if t.art == nil || track.ArtworkURL == "" {
		return
	}
	artwork, err := t.art.Fetch(ctx, track.ArtworkURL)
	if err != nil {
		t.log.Warn("artwork fetch failed, tagging without cover",
			zap.String("track", track.DisplayName()),
			zap.Error(err))
		return
	}

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    http.DetectContentType(artwork),
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     artwork,
	})
}
