package fsdriver

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Removed int
	Bytes   int64
}

// SweepOnce removes temp files older than maxAge left under the root by
// writes that never committed or aborted (crashed process).
func (fs *FS) SweepOnce(ctx context.Context, maxAge time.Duration, log *slog.Logger) (SweepResult, error) {
	var res SweepResult
	if err := fs.checkRoot(); err != nil {
		return res, err
	}
	cutoff := time.Now().Add(-maxAge)

	err := filepath.WalkDir(fs.Root, func(path string, de os.DirEntry, err error) error {
		if err != nil {
			log.Warn("sweep.walk_fail", "path", path, "err", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if de.IsDir() || !strings.Contains(de.Name(), tmpMarker) {
			return nil
		}
		fi, err := de.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Error("sweep.remove_fail", "path", path, "err", err)
			return nil
		}
		res.Removed++
		res.Bytes += fi.Size()
		log.Info("sweep.removed", "path", path, "size", fi.Size())
		return nil
	})
	return res, err
}

// StartSweeper runs SweepOnce every interval until ctx is done.
func (fs *FS) StartSweeper(ctx context.Context, every, maxAge time.Duration, logger *slog.Logger) {
	log := logger.With(slog.String("comp", "sweeper"))

	go func() {
		log.Info("sweep.started", "every", every.String(), "max_age", maxAge.String())
		t := time.NewTicker(every)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("sweep.stopped", "reason", "context canceled")
				return
			case <-t.C:
				start := time.Now()
				res, err := fs.SweepOnce(ctx, maxAge, log)
				if err != nil {
					log.Error("sweep.pass_fail", "err", err)
					continue
				}
				log.Info("sweep.pass_end",
					"removed", res.Removed,
					"freed_bytes", res.Bytes,
					"dur_ms", time.Since(start).Milliseconds(),
				)
			}
		}
	}()
}
