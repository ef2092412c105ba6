package usecase

import (
	"context"
	"errors"
	"fmt"

	"storyboard/internal/assetstore"
	"storyboard/internal/batch"
	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/providers/video"
)

// Video generation is the most rate-limited and highest-latency provider
// call, hence the lower ceiling.
const defaultVideoConcurrency = 2

// VideoClips animates persisted first frames into clips through the
// provider's asynchronous task API.
type VideoClips struct {
	assets      AssetPersister
	tasks       video.TaskRunner
	logger      infra.Logger
	concurrency int
	wait        video.WaitOptions
}

// NewVideoClips constructs the use case. concurrency <= 0 takes the
// default; wait zero-values take the task client defaults.
func NewVideoClips(assets AssetPersister, tasks video.TaskRunner, logger infra.Logger, concurrency int, wait video.WaitOptions) *VideoClips {
	if concurrency <= 0 {
		concurrency = defaultVideoConcurrency
	}
	return &VideoClips{assets: assets, tasks: tasks, logger: logger, concurrency: concurrency, wait: wait}
}

// Run rejects the whole batch before any network call when any item carries
// a duration outside [MinClipSeconds, MaxClipSeconds] or a non-positive
// frame ordinal. A first frame missing from the store fails only its item.
func (u *VideoClips) Run(ctx context.Context, storyID string, items []domain.VideoClipItem, overwrite bool, onItem OnItem) (domain.Snapshot, error) {
	if err := validateOrdinals(items, func(it domain.VideoClipItem) int { return it.Ordinal }); err != nil {
		return domain.Snapshot{}, err
	}
	for _, item := range items {
		if item.FrameOrdinal <= 0 {
			return domain.Snapshot{}, domain.Validationf("ordinal %d: frame ordinal must be positive, got %d", item.Ordinal, item.FrameOrdinal)
		}
		if item.DurationSeconds < domain.MinClipSeconds || item.DurationSeconds > domain.MaxClipSeconds {
			return domain.Snapshot{}, domain.Validationf("ordinal %d: duration must be within [%d, %d] seconds, got %d",
				item.Ordinal, domain.MinClipSeconds, domain.MaxClipSeconds, item.DurationSeconds)
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

func (u *VideoClips) runItem(ctx context.Context, storyID string, item domain.VideoClipItem, overwrite bool) domain.ItemResult {
	if !overwrite {
		existing, proceed, err := reuseExisting(ctx, u.assets, storyID, domain.AssetKindVideoClip, item.Ordinal)
		if err != nil {
			return failedItem(u.logger, storyID, item.Ordinal, err)
		}
		if !proceed {
			return successItem(u.assets, existing, true)
		}
	}

	frame, err := u.assets.FindBySlot(ctx, storyID, domain.AssetKindFirstFrame, item.FrameOrdinal)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = fmt.Errorf("first frame %d: %w", item.FrameOrdinal, domain.ErrNotFound)
		}
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}

	taskID, err := u.tasks.CreateTask(ctx, video.CreateTaskRequest{
		Prompt:          item.Prompt,
		ImageURL:        u.assets.ResolveURL(frame.StorageKey),
		DurationSeconds: item.DurationSeconds,
		RequestID:       fmt.Sprintf("%s-clip-%d", storyID, item.Ordinal),
	})
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}

	result, err := u.tasks.WaitForTask(ctx, taskID, u.wait)
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}

	asset, err := u.assets.Persist(ctx, assetstore.PersistRequest{
		StoryID:        storyID,
		Kind:           domain.AssetKindVideoClip,
		Ordinal:        item.Ordinal,
		SourceURL:      result.VideoURL,
		SourceMIME:     "video/mp4",
		ThumbSourceURL: result.LastFrameURL,
		Meta: map[string]any{
			"prompt":           item.Prompt,
			"frame_ordinal":    item.FrameOrdinal,
			"duration_seconds": item.DurationSeconds,
			"task_id":          taskID,
		},
		Overwrite: overwrite,
	})
	if err != nil {
		return failedItem(u.logger, storyID, item.Ordinal, err)
	}
	return successItem(u.assets, asset, false)
}
