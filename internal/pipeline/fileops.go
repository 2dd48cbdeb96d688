package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	moveAttempts   = 3
	moveRetryDelay = 200 * time.Millisecond
)

// MoveFile moves src to dst, creating the destination directory as
// needed. Rename is attempted first; when it fails (cross-device
// moves, or the file briefly held open by a scanner or sync client)
// the move falls back to copy-and-delete with a short retry.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var err error
	for attempt := 0; attempt < moveAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(moveRetryDelay)
		}
		if err = os.Rename(src, dst); err == nil {
			return nil
		}
		if copyErr := copyAndRemove(src, dst); copyErr == nil {
			return nil
		}
	}
	return fmt.Errorf("move %s: %w", filepath.Base(src), err)
}

func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	in.Close()
	return os.Remove(src)
}
