package ports

import (
	"context"

	"mediastream/internal/domain"
)

// AssetRepository persists asset records and their ordered part lists.
type AssetRepository interface {
	Create(ctx context.Context, asset domain.Asset) error
	Get(ctx context.Context, id domain.AssetID) (domain.Asset, error)
	GetByHandle(ctx context.Context, handle domain.Handle) (domain.Asset, error)
	List(ctx context.Context) ([]domain.Asset, error)
	Delete(ctx context.Context, id domain.AssetID) error
}
