package watcher

import (
	"context"
	"os"
	"time"
)

// Files arrive from scanners and sync clients that write
// incrementally; processing a half-written PDF would fail extraction.
// A file counts as stable once its size holds for the configured
// number of consecutive samples.

const maxStabilityAttempts = 100

func (w *Watcher) waitStable(ctx context.Context, path string) bool {
	interval := w.cfg.StabilityIntervalDuration()

	var lastSize int64 = -1
	stable := 0

	for attempt := 0; attempt < maxStabilityAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}

		info, err := os.Stat(path)
		if err != nil {
			return false
		}

		if info.Size() == lastSize {
			stable++
			if stable >= w.cfg.StabilityChecks {
				return true
			}
			continue
		}

		lastSize = info.Size()
		stable = 1
	}

	w.logger.Warn("file size never settled", "path", path)
	return false
}
