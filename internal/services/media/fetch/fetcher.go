// Package fetch downloads remote media parts to local files.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultAttempts = 3

var retryBackoff = 2 * time.Second

type Fetcher struct {
	http     *http.Client
	attempts int
	logger   *slog.Logger
}

func New(logger *slog.Logger) *Fetcher {
	return &Fetcher{
		http: &http.Client{
			Timeout:   15 * time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		attempts: defaultAttempts,
		logger:   logger,
	}
}

// Fetch downloads url into destPath, retrying the whole download with a
// linear backoff. Partial files never survive a failed attempt.
func (f *Fetcher) Fetch(ctx context.Context, url, destPath string) error {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt-1) * retryBackoff):
			}
		}
		if err := f.fetchOnce(ctx, url, destPath); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return err
			}
			f.log().Warn("part download attempt failed",
				"attempt", attempt, "attempts", f.attempts, "err", err)
			continue
		}
		return nil
	}
	return fmt.Errorf("download failed after %d attempts: %w", f.attempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp := destPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, destPath)
}

func (f *Fetcher) log() *slog.Logger {
	if f.logger != nil {
		return f.logger
	}
	return slog.Default()
}
