package reconcile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
)

// MinAudioFileSize is the smallest plausible size for a finished audio file.
// Anything below is treated as a truncated write.
const MinAudioFileSize int64 = 16 * 1024

var (
	ErrFileMissing   = errors.New("file missing")
	ErrFileTruncated = errors.New("file truncated")
	ErrNotAudio      = errors.New("not an audio file")
)

var id3Magic = []byte("ID3")

// VerifyAudioFile checks that the file exists, is large enough to be a real
// download, and starts with a recognizable audio container header.
func VerifyAudioFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return ErrFileMissing
	}
	if info.Size() < MinAudioFileSize {
		return fmt.Errorf("%w: %d bytes", ErrFileTruncated, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open for verification: %w", err)
	}
	defer f.Close()

	// filetype needs at most 261 bytes to match a signature.
	head := make([]byte, 261)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read header: %w", err)
	}
	head = head[:n]

	// Tagged MP3s start with an ID3v2 header rather than a frame sync, which
	// the signature matcher does not cover.
	if bytes.HasPrefix(head, id3Magic) {
		return nil
	}

	kind, err := filetype.Match(head)
	if err != nil {
		return fmt.Errorf("failed to match file type: %w", err)
	}
	if kind == matchers.TypeMp3 || kind == matchers.TypeM4a ||
		kind == matchers.TypeOgg || kind == matchers.TypeFlac ||
		kind == matchers.TypeWav {
		return nil
	}
	return fmt.Errorf("%w: detected %q", ErrNotAudio, kind.Extension)
}
