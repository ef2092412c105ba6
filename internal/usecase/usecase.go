// Package usecase composes the asset store, the provider clients and the
// bounded batch runner into per-kind generation flows. Each flow takes a
// list of request items keyed by ordinal and produces exactly one result
// per item, in input order, regardless of individual failures.
package usecase

import (
	"context"
	"errors"

	"storyboard/internal/assetstore"
	"storyboard/internal/domain"
	"storyboard/internal/infra"
)

// AssetPersister is the slice of the asset store the use cases need.
type AssetPersister interface {
	FindBySlot(ctx context.Context, storyID string, kind domain.AssetKind, ordinal int) (*domain.Asset, error)
	Persist(ctx context.Context, req assetstore.PersistRequest) (*domain.Asset, error)
	ResolveURL(key string) string
}

// OnItem is invoked once per completed item, from the worker goroutine that
// finished it.
type OnItem func(domain.ItemResult)

func validateOrdinals[T any](items []T, ordinal func(T) int) error {
	if len(items) == 0 {
		return domain.Validationf("empty batch")
	}
	seen := make(map[int]struct{}, len(items))
	for _, item := range items {
		o := ordinal(item)
		if o <= 0 {
			return domain.Validationf("ordinal must be positive, got %d", o)
		}
		if _, dup := seen[o]; dup {
			return domain.Validationf("duplicate ordinal %d", o)
		}
		seen[o] = struct{}{}
	}
	return nil
}

func snapshotOf(results []domain.ItemResult) domain.Snapshot {
	snapshot := domain.Snapshot{Summary: domain.Summary{Total: len(results)}}
	for _, res := range results {
		snapshot.Fold(res)
	}
	return snapshot
}

// failedItem converts an error caught at the unit-task boundary into a
// result entry. Errors never unwind into the batch runner.
func failedItem(logger infra.Logger, storyID string, ordinal int, err error) domain.ItemResult {
	logger.Warn().Err(err).
		Str("story_id", storyID).
		Int("ordinal", ordinal).
		Str("error_kind", domain.ErrorKind(err)).
		Msg("usecase: item failed")
	return domain.ItemResult{
		Ordinal:   ordinal,
		Status:    domain.ItemStatusFailed,
		Error:     err.Error(),
		ErrorKind: domain.ErrorKind(err),
	}
}

func successItem(assets AssetPersister, asset *domain.Asset, skipped bool) domain.ItemResult {
	res := domain.ItemResult{
		Ordinal: asset.Ordinal,
		Status:  domain.ItemStatusSuccess,
		URL:     assets.ResolveURL(asset.StorageKey),
		Skipped: skipped,
	}
	if asset.ThumbKey != "" {
		res.ThumbURL = assets.ResolveURL(asset.ThumbKey)
	}
	return res
}

// reuseExisting implements the idempotent skip: outside overwrite mode an
// occupied slot short-circuits without touching the provider. The second
// return reports whether the caller should proceed with generation.
func reuseExisting(ctx context.Context, assets AssetPersister, storyID string, kind domain.AssetKind, ordinal int) (*domain.Asset, bool, error) {
	existing, err := assets.FindBySlot(ctx, storyID, kind, ordinal)
	if err == nil {
		return existing, false, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, true, nil
	}
	return nil, false, err
}
