package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
	"mediastream/internal/metrics"
)

const defaultDownloadParallelism = 4

type ConcatAsset struct {
	Resolver ports.HandleResolver
	Fetcher  ports.PartFetcher
	Concat   ports.MediaConcatenator
	TmpDir   string
	// Parallelism bounds concurrent part downloads. Zero means the default.
	Parallelism int64
	Logger      *slog.Logger
}

// Execute streams the concatenation of all asset parts, in index order,
// into w. Parts that fail to resolve or download are skipped with a log
// line; the stream proceeds with whatever remains. Only when no part at
// all is usable does it fail with domain.ErrNoParts.
func (uc ConcatAsset) Execute(ctx context.Context, asset domain.Asset, w io.Writer) error {
	parts := asset.OrderedParts()
	if len(parts) == 0 {
		if asset.PrimaryHandle == "" {
			return domain.ErrNoParts
		}
		parts = []domain.Part{{Index: 1, Handle: asset.PrimaryHandle}}
	}

	// Resolve every handle up front so a dead part is known before any
	// bytes are downloaded.
	urls := make([]string, len(parts))
	var resolveGroup errgroup.Group
	for i, part := range parts {
		i, part := i, part
		resolveGroup.Go(func() error {
			loc, err := uc.Resolver.Resolve(ctx, part.Handle)
			if err != nil {
				metrics.ConcatSkippedPartsTotal.Inc()
				uc.log().Warn("part handle did not resolve, skipping",
					"asset", asset.ID, "part", part.Index, "err", err)
				return nil
			}
			urls[i] = loc.URL
			return nil
		})
	}
	if err := resolveGroup.Wait(); err != nil {
		return wrapUpstream(err)
	}

	dir, err := os.MkdirTemp(uc.TmpDir, "concat-*")
	if err != nil {
		return wrapUpstream(err)
	}
	defer os.RemoveAll(dir)

	parallelism := uc.Parallelism
	if parallelism <= 0 {
		parallelism = defaultDownloadParallelism
	}
	sem := semaphore.NewWeighted(parallelism)

	files := make([]string, len(parts))
	var mu sync.Mutex
	var fetchGroup errgroup.Group
	for i, part := range parts {
		i, part := i, part
		if urls[i] == "" {
			continue
		}
		fetchGroup.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			dest := filepath.Join(dir, fmt.Sprintf("part-%05d", part.Index))
			if err := uc.Fetcher.Fetch(ctx, urls[i], dest); err != nil {
				metrics.ConcatSkippedPartsTotal.Inc()
				uc.log().Warn("part download failed, skipping",
					"asset", asset.ID, "part", part.Index, "err", err)
				return nil
			}
			mu.Lock()
			files[i] = dest
			mu.Unlock()
			return nil
		})
	}
	if err := fetchGroup.Wait(); err != nil {
		return wrapUpstream(err)
	}

	ordered := make([]string, 0, len(files))
	for _, f := range files {
		if f != "" {
			ordered = append(ordered, f)
		}
	}
	if len(ordered) == 0 {
		return domain.ErrNoParts
	}

	if err := uc.Concat.ToWriter(ctx, ordered, w); err != nil {
		return wrapEncode(err)
	}
	return nil
}

func (uc ConcatAsset) log() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
