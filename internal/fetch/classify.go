package fetch

import (
	"strings"

	"github.com/tunesync/tunesync/internal/batch"
)

// Known anti-automation responses. YouTube rotates the wording occasionally;
// new variants belong in this list and nowhere else.
var botPatterns = []string{
	"sign in to confirm you're not a bot",
	"sign in to confirm you’re not a bot",
	"http error 429",
	"too many requests",
	"confirm that you are not a robot",
	"captcha",
	"suspicious activity",
}

// Asset is gone or blocked for this region; retrying cannot help.
var unavailablePatterns = []string{
	"video unavailable",
	"this video is not available",
	"this video has been removed",
	"private video",
	"account associated with this video has been terminated",
	"not available in your country",
	"who has blocked it in your country",
	"requested format is not available",
	"members-only content",
}

// Network or server hiccups; retryable without a special pause.
var transientPatterns = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure",
	"network is unreachable",
	"http error 500",
	"http error 502",
	"http error 503",
	"unable to download webpage",
	"incomplete read",
	"got server http error",
}

// Classify maps raw downloader output to the closed failure-class set. The
// bot check runs first: a blocked fetch often also prints a generic download
// error, and the bot signal is the one the coordinator must react to.
func Classify(output string) batch.FailureClass {
	text := strings.ToLower(output)

	for _, p := range botPatterns {
		if strings.Contains(text, p) {
			return batch.FailureBotDetected
		}
	}
	for _, p := range unavailablePatterns {
		if strings.Contains(text, p) {
			return batch.FailureUnavailable
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(text, p) {
			return batch.FailureTransient
		}
	}
	return batch.FailureUnknown
}
