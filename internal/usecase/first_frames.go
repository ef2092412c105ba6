package usecase

import (
	"context"
	"errors"
	"fmt"

	"storyboard/internal/assetstore"
	"storyboard/internal/batch"
	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/providers/image"
)

// FirstFrames composes first frames conditioned on previously generated
// reference images.
type FirstFrames struct {
	assets      AssetPersister
	generator   image.Generator
	logger      infra.Logger
	concurrency int
}

// NewFirstFrames constructs the use case. concurrency <= 0 takes the
// default.
func NewFirstFrames(assets AssetPersister, generator image.Generator, logger infra.Logger, concurrency int) *FirstFrames {
	if concurrency <= 0 {
		concurrency = defaultImageConcurrency
	}
	return &FirstFrames{assets: assets, generator: generator, logger: logger, concurrency: concurrency}
}

// Run validates the whole batch before any provider call: every item needs
// between 1 and 8 positive source ordinals. A reference image missing from
// the store is not a validation failure; it fails only its own item.
func (u *FirstFrames) Run(ctx context.Context, storyID string, items []domain.FirstFrameItem, overwrite bool, onItem OnItem) (domain.Snapshot, error) {
	if err := validateOrdinals(items, func(it domain.FirstFrameItem) int { return it.Ordinal }); err != nil {
		return domain.Snapshot{}, err
	}
	for _, item := range items {
		if len(item.SourceOrdinals) == 0 {
			return domain.Snapshot{}, domain.Validationf("ordinal %d: at least one source ordinal is required", item.Ordinal)
		}
		if len(item.SourceOrdinals) > domain.MaxFrameSources {
			return domain.Snapshot{}, domain.Validationf("ordinal %d: at most %d source ordinals allowed, got %d", item.Ordinal, domain.MaxFrameSources, len(item.SourceOrdinals))
		}
		for _, src := range item.SourceOrdinals {
			if src <= 0 {
				return domain.Snapshot{}, domain.Validationf("ordinal %d: source ordinal must be positive, got %d", item.Ordinal, src)
			}
		}
	}

	tasks := make([]func(context.Context) domain.ItemResult, len(items))
	for i, item := range items {
		item := item
		tasks[i] = func(ctx context.Context) domain.ItemResult {
			res := u.runItem(ctx, storyID, item, overwrite)
			if onItem != nil {
				onItem(res)
			}
			return res
		}
	}
	return snapshotOf(batch.Run(ctx, tasks, u.concurrency)), nil
}

func (u *FirstFrames) runItem(ctx context.Context, storyID string, item domain.FirstFrameItem, overwrite bool) domain.ItemResult {
	if !overwrite {
		existing, proceed, err := reuseExisting(ctx, u.assets, storyID, domain.AssetKindFirstFrame, item.Ordinal)
		if err != nil {
			return failedItem(u.logger, storyID, item.Ordinal, err)
		}
		if !proceed {
			return successItem(u.assets, existing, true)
		}
	}

	sourceURLs, err := u.resolveSources(ctx, storyID, item.SourceOrdinals)
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}

	generated, err := u.generator.Generate(ctx, image.GenerateRequest{
		Prompt:     item.Prompt,
		SourceURLs: sourceURLs,
		RequestID:  fmt.Sprintf("%s-frame-%d", storyID, item.Ordinal),
	})
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}

	asset, err := u.assets.Persist(ctx, assetstore.PersistRequest{
		StoryID:    storyID,
		Kind:       domain.AssetKindFirstFrame,
		Ordinal:    item.Ordinal,
		SourceURL:  generated.URL,
		SourceMIME: generated.MIME,
		Meta: map[string]any{
			"prompt":          item.Prompt,
			"source_ordinals": item.SourceOrdinals,
		},
		Overwrite: overwrite,
	})
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}
	return successItem(u.assets, asset, false)
}

func (u *FirstFrames) resolveSources(ctx context.Context, storyID string, ordinals []int) ([]string, error) {
	urls := make([]string, 0, len(ordinals))
	for _, ordinal := range ordinals {
		ref, err := u.assets.FindBySlot(ctx, storyID, domain.AssetKindReferenceImage, ordinal)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("reference image %d: %w", ordinal, domain.ErrNotFound)
			}
			return nil, err
		}
		urls = append(urls, u.assets.ResolveURL(ref.StorageKey))
	}
	return urls, nil
}
