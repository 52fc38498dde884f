package apihttp

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"mediastream/internal/domain"
	"mediastream/internal/metrics"
)

const sweepInterval = time.Hour

// startSweeper evicts manifest directories whose newest file is older than
// maxAge, so abandoned assets do not pin disk forever. Directories with a
// running job are left alone.
func (m *ManifestManager) startSweeper(ctx context.Context, maxAge time.Duration, logger *slog.Logger) {
	if maxAge <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep(maxAge, logger)
			}
		}
	}()
}

func (m *ManifestManager) sweep(maxAge time.Duration, logger *slog.Logger) {
	entries, err := os.ReadDir(m.cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			metrics.ManifestCacheCleanupErrors.Inc()
			logger.Warn("manifest cache sweep failed", slog.String("error", err.Error()))
		}
		return
	}

	cutoff := time.Now().Add(-maxAge)
	var totalSize int64
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(m.cfg.BaseDir, entry.Name())

		// Manifest directories are named by asset ID.
		m.mu.Lock()
		_, running := m.jobs[domain.AssetID(entry.Name())]
		m.mu.Unlock()
		if running {
			totalSize += dirSize(dir)
			continue
		}

		newest, size := dirNewestAndSize(dir)
		if newest.Before(cutoff) {
			if err := os.RemoveAll(dir); err != nil {
				metrics.ManifestCacheCleanupErrors.Inc()
				logger.Warn("manifest dir removal failed",
					slog.String("dir", dir), slog.String("error", err.Error()))
				totalSize += size
				continue
			}
			logger.Info("manifest dir evicted", slog.String("dir", dir))
			continue
		}
		totalSize += size
	}
	metrics.ManifestCacheSizeBytes.Set(float64(totalSize))
}

func dirNewestAndSize(dir string) (time.Time, int64) {
	var newest time.Time
	var size int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		size += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest, size
}

func dirSize(dir string) int64 {
	_, size := dirNewestAndSize(dir)
	return size
}
