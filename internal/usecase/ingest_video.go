package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
	"mediastream/internal/metrics"
)

var ErrInvalidUpload = errors.New("invalid upload")

type IngestVideo struct {
	Split       SplitVideo
	Prober      ports.MediaProber
	Host        ports.BlobHost
	Repo        ports.AssetRepository
	BudgetBytes int64
	Now         func() time.Time
	Logger      *slog.Logger
}

type IngestVideoInput struct {
	FilePath string
	Title    string
}

// Execute takes a local video file, splits it to fit the per-part budget,
// uploads every part to the blob host and persists the resulting asset.
// The input file and any intermediate part files are removed afterwards.
func (uc IngestVideo) Execute(ctx context.Context, input IngestVideoInput) (domain.Asset, error) {
	if input.FilePath == "" {
		return domain.Asset{}, ErrInvalidUpload
	}
	info, err := os.Stat(input.FilePath)
	if err != nil {
		return domain.Asset{}, wrapUpstream(err)
	}

	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}

	paths, err := uc.Split.Execute(ctx, SplitVideoInput{
		FilePath:    input.FilePath,
		BudgetBytes: uc.BudgetBytes,
	})
	if err != nil {
		return domain.Asset{}, err
	}
	defer cleanupParts(input.FilePath, paths)

	durations := PartDurations(ctx, uc.Prober, paths)

	parts := make([]domain.Part, 0, len(paths))
	var total float64
	for i, p := range paths {
		handle, upErr := uc.Host.Upload(ctx, p)
		if upErr != nil {
			return domain.Asset{}, wrapUpstream(upErr)
		}
		parts = append(parts, domain.Part{
			Index:           i + 1,
			Handle:          handle,
			DurationSeconds: durations[i],
		})
		total += durations[i]
	}

	title := input.Title
	if title == "" {
		title = filepath.Base(input.FilePath)
	}

	asset := domain.Asset{
		ID:                   domain.AssetID(uuid.NewString()),
		Title:                title,
		PrimaryHandle:        parts[0].Handle,
		Parts:                parts,
		TotalDurationSeconds: total,
		SizeBytes:            info.Size(),
		CreatedAt:            now(),
		UpdatedAt:            now(),
	}
	if err := asset.Validate(); err != nil {
		return domain.Asset{}, err
	}
	if err := uc.Repo.Create(ctx, asset); err != nil {
		return domain.Asset{}, wrapRepo(err)
	}

	metrics.IngestPartsTotal.Add(float64(len(parts)))
	uc.log().Info("video ingested",
		"asset", asset.ID, "parts", len(parts), "size", info.Size())
	return asset, nil
}

func cleanupParts(original string, parts []string) {
	for _, p := range parts {
		if p != original {
			os.Remove(p)
		}
	}
	os.Remove(original)
}

func (uc IngestVideo) log() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}
