package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pdf-audio/internal/domain"
)

// DownloadAudioToFile saves the generated audio at destinationPath. The body
// is written to a temporary sibling first and moved into place on success,
// so a failed download never leaves a truncated file behind.
func (c *Client) DownloadAudioToFile(ctx context.Context, audioRef, destinationPath string) (int64, error) {
	fail := func(cause error) error {
		return &Error{Kind: domain.ErrorKindDownloadFailed, Op: OpDownloadAudio, Message: MsgDownloadFailed, Err: cause}
	}

	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return 0, fail(fmt.Errorf("prepare destination directory: %w", err))
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fail(fmt.Errorf("remove stale temp file: %w", err))
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fail(fmt.Errorf("create temporary file: %w", err))
	}

	n, copyErr := c.DownloadAudio(ctx, audioRef, file)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return n, copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return n, fail(fmt.Errorf("close destination file: %w", closeErr))
	}

	if err := os.Remove(destinationPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(tmpPath)
		return n, fail(fmt.Errorf("remove old destination file: %w", err))
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return n, fail(fmt.Errorf("move downloaded file into place: %w", err))
	}

	return n, nil
}

// AudioFileName returns the local file name used for a downloaded reference.
func AudioFileName(audioRef string) string {
	name := filepath.Base(filepath.Clean("/" + audioRef))
	if name == "/" || name == "." || name == "" {
		return "audio.mp3"
	}
	if filepath.Ext(name) == "" {
		name += ".mp3"
	}
	return name
}
