package fetch

import (
	"testing"

	"github.com/tunesync/tunesync/internal/batch"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   batch.FailureClass
	}{
		{
			"bot wall",
			"ERROR: [youtube] dQw4w9WgXcQ: Sign in to confirm you're not a bot. Use --cookies for authentication",
			batch.FailureBotDetected,
		},
		{
			"rate limited",
			"ERROR: unable to download video data: HTTP Error 429: Too Many Requests",
			batch.FailureBotDetected,
		},
		{
			"removed video",
			"ERROR: [youtube] abc123: Video unavailable. This video has been removed by the uploader",
			batch.FailureUnavailable,
		},
		{
			"region block",
			"ERROR: The uploader has not made this video available in your country",
			batch.FailureUnavailable,
		},
		{
			"private video",
			"ERROR: [youtube] xyz: Private video. Sign in if you've been granted access to this video",
			batch.FailureUnavailable,
		},
		{
			"network timeout",
			"ERROR: unable to download webpage: <urlopen error timed out>",
			batch.FailureTransient,
		},
		{
			"server error",
			"ERROR: unable to download video data: HTTP Error 503: Service Unavailable",
			batch.FailureTransient,
		},
		{
			"connection reset",
			"ERROR: Connection reset by peer",
			batch.FailureTransient,
		},
		{
			"something else entirely",
			"ERROR: Postprocessing: ffmpeg exited with code 1",
			batch.FailureUnknown,
		},
		{
			"empty output",
			"",
			batch.FailureUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.output); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.output, got, tt.want)
			}
		})
	}
}

func TestClassifyBotWinsOverGenericError(t *testing.T) {
	// Blocked fetches usually print a generic failure after the bot notice;
	// the bot signal is the one the coordinator has to react to.
	output := "ERROR: Sign in to confirm you're not a bot\nERROR: unable to download webpage"
	if got := Classify(output); got != batch.FailureBotDetected {
		t.Errorf("Classify = %s, want %s", got, batch.FailureBotDetected)
	}
}
