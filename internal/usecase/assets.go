package usecase

import (
	"context"
	"errors"

	"mediastream/internal/domain"
	"mediastream/internal/domain/ports"
)

type GetAsset struct {
	Repo ports.AssetRepository
}

func (uc GetAsset) Execute(ctx context.Context, id domain.AssetID) (domain.Asset, error) {
	asset, err := uc.Repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Asset{}, err
		}
		return domain.Asset{}, wrapRepo(err)
	}
	return asset, nil
}

type ListAssets struct {
	Repo ports.AssetRepository
}

func (uc ListAssets) Execute(ctx context.Context) ([]domain.Asset, error) {
	assets, err := uc.Repo.List(ctx)
	if err != nil {
		return nil, wrapRepo(err)
	}
	return assets, nil
}

type DeleteAsset struct {
	Repo ports.AssetRepository
}

func (uc DeleteAsset) Execute(ctx context.Context, id domain.AssetID) error {
	err := uc.Repo.Delete(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return wrapRepo(err)
}
