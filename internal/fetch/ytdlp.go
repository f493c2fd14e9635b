package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/reconcile"
)

// YTDLPConfig controls the yt-dlp invocation.
type YTDLPConfig struct {
	Binary       string // defaults to "yt-dlp"
	AudioFormat  string // defaults to "mp3"
	AudioQuality string // defaults to "0" (best)
	ExtraArgs    []string
}

func (c YTDLPConfig) withDefaults() YTDLPConfig {
	if c.Binary == "" {
		c.Binary = "yt-dlp"
	}
	if c.AudioFormat == "" {
		c.AudioFormat = "mp3"
	}
	if c.AudioQuality == "" {
		c.AudioQuality = "0"
	}
	return c
}

// YTDLPFetcher shells out to yt-dlp for the actual media acquisition.
type YTDLPFetcher struct {
	cfg YTDLPConfig
	log *zap.Logger
}

// NewYTDLPFetcher returns a ready fetcher. The logger may be nil.
func NewYTDLPFetcher(cfg YTDLPConfig, log *zap.Logger) *YTDLPFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &YTDLPFetcher{cfg: cfg.withDefaults(), log: log}
}

// watchURL builds the media source URL from the resolved reference.
func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// Fetch downloads one track. The destination name comes from the track
// identity, so concurrent workers never collide on a path.
func (f *YTDLPFetcher) Fetch(ctx context.Context, track batch.Track, destDir string) (Result, error) {
	if !track.HasVideo() {
		return Result{Class: batch.FailureUnavailable, Detail: "no resolved media reference"}, nil
	}

	if _, err := exec.LookPath(f.cfg.Binary); err != nil {
		return Result{}, fmt.Errorf("media fetch tool not found: %w", err)
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return Result{}, fmt.Errorf("destination directory not writable: %w", err)
	}

	destPath := filepath.Join(destDir, track.FileName())
	args := f.buildArgs(track, destPath)

	f.log.Debug("running media fetch",
		zap.String("track", track.DisplayName()),
		zap.String("video_id", track.VideoID),
		zap.String("dest", destPath))

	cmd := exec.CommandContext(ctx, f.cfg.Binary, args...)
	out, runErr := cmd.CombinedOutput()
	output := string(out)

	if ctx.Err() != nil {
		// Cancelled mid-fetch; report as transient so a later run retries.
		return Result{Class: batch.FailureTransient, Detail: "fetch cancelled"}, nil
	}

	if runErr != nil {
		class := Classify(output)
		f.log.Debug("media fetch failed",
			zap.String("track", track.DisplayName()),
			zap.String("class", string(class)))
		return Result{Class: class, Detail: tail(output, 400)}, nil
	}

	// A track is only reported complete once its file passes the same check
	// the reconciler applies on later runs.
	if verr := reconcile.VerifyAudioFile(destPath); verr != nil {
		if errors.Is(verr, reconcile.ErrFileMissing) {
			return Result{Class: batch.FailureUnknown, Detail: "tool reported success but no file was written"}, nil
		}
		// Broken output; remove it so the reconciler does not trip on it.
		os.Remove(destPath)
		return Result{Class: batch.FailureTransient, Detail: fmt.Sprintf("output failed verification: %v", verr)}, nil
	}

	return Result{Class: batch.FailureNone, Path: destPath}, nil
}

// buildArgs assembles the yt-dlp command line. The output template strips the
// .mp3 suffix because yt-dlp appends the extension of the extracted audio.
func (f *YTDLPFetcher) buildArgs(track batch.Track, destPath string) []string {
	template := strings.TrimSuffix(destPath, ".mp3") + ".%(ext)s"
	args := []string{
		"--extract-audio",
		"--audio-format", f.cfg.AudioFormat,
		"--audio-quality", f.cfg.AudioQuality,
		"--no-playlist",
		"--no-progress",
		"--output", template,
	}
	args = append(args, f.cfg.ExtraArgs...)
	args = append(args, watchURL(track.VideoID))
	return args
}

// tail returns the last n bytes of s, trimmed; error text from the tool ends
// with the interesting part.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
