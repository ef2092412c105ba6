package usecase

import (
	"context"
	"fmt"
	"strings"

	"storyboard/internal/assetstore"
	"storyboard/internal/batch"
	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/providers/image"
)

const defaultImageConcurrency = 4

// ReferenceImages generates standalone reference images, one per ordinal.
type ReferenceImages struct {
	assets      AssetPersister
	generator   image.Generator
	logger      infra.Logger
	concurrency int
}

// NewReferenceImages constructs the use case. concurrency <= 0 takes the
// default.
func NewReferenceImages(assets AssetPersister, generator image.Generator, logger infra.Logger, concurrency int) *ReferenceImages {
	if concurrency <= 0 {
		concurrency = defaultImageConcurrency
	}
	return &ReferenceImages{assets: assets, generator: generator, logger: logger, concurrency: concurrency}
}

// Run validates the batch, then executes one unit task per item under the
// concurrency ceiling. The returned error is non-nil only for pre-run
// validation failures; per-item errors become failed result entries.
func (u *ReferenceImages) Run(ctx context.Context, storyID string, items []domain.ReferenceImageItem, overwrite bool, onItem OnItem) (domain.Snapshot, error) {
	if err := validateOrdinals(items, func(it domain.ReferenceImageItem) int { return it.Ordinal }); err != nil {
		return domain.Snapshot{}, err
	}
	for _, item := range items {
		if strings.TrimSpace(item.Prompt) == "" {
			return domain.Snapshot{}, domain.Validationf("ordinal %d: prompt is required", item.Ordinal)
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

func (u *ReferenceImages) runItem(ctx context.Context, storyID string, item domain.ReferenceImageItem, overwrite bool) domain.ItemResult {
	if !overwrite {
		existing, proceed, err := reuseExisting(ctx, u.assets, storyID, domain.AssetKindReferenceImage, item.Ordinal)
		if err != nil {
			return failedItem(u.logger, storyID, item.Ordinal, err)
		}
		if !proceed {
			return successItem(u.assets, existing, true)
		}
	}

	generated, err := u.generator.Generate(ctx, image.GenerateRequest{
		Prompt:    item.Prompt,
		RequestID: fmt.Sprintf("%s-ref-%d", storyID, item.Ordinal),
	})
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}

	asset, err := u.assets.Persist(ctx, assetstore.PersistRequest{
		StoryID:    storyID,
		Kind:       domain.AssetKindReferenceImage,
		Ordinal:    item.Ordinal,
		SourceURL:  generated.URL,
		SourceMIME: generated.MIME,
		Meta: map[string]any{
			"prompt":   item.Prompt,
			"name":     item.Name,
			"category": item.Category,
		},
		Overwrite: overwrite,
	})
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}
	return successItem(u.assets, asset, false)
}
