package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"storyboard/internal/assetstore"
	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/providers/image"
	"storyboard/internal/providers/video"
)

func testLogger() infra.Logger {
	return infra.Logger(zerolog.New(io.Discard))
}

// fakeAssets is an in-memory AssetPersister keyed by (kind, ordinal).
type fakeAssets struct {
	mu       sync.Mutex
	assets   map[string]*domain.Asset
	persists []assetstore.PersistRequest
	findErr  error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{assets: map[string]*domain.Asset{}}
}

func slotKey(kind domain.AssetKind, ordinal int) string {
	return fmt.Sprintf("%s/%d", kind, ordinal)
}

func (f *fakeAssets) seed(kind domain.AssetKind, ordinal int, storageKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[slotKey(kind, ordinal)] = &domain.Asset{
		ID:         fmt.Sprintf("seed-%s-%d", kind, ordinal),
		Kind:       kind,
		Ordinal:    ordinal,
		StorageKey: storageKey,
	}
}

func (f *fakeAssets) FindBySlot(_ context.Context, _ string, kind domain.AssetKind, ordinal int) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	if asset, ok := f.assets[slotKey(kind, ordinal)]; ok {
		clone := *asset
		return &clone, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeAssets) Persist(_ context.Context, req assetstore.PersistRequest) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persists = append(f.persists, req)
	asset := &domain.Asset{
		ID:         fmt.Sprintf("asset-%s-%d", req.Kind, req.Ordinal),
		StoryID:    req.StoryID,
		Kind:       req.Kind,
		Ordinal:    req.Ordinal,
		StorageKey: fmt.Sprintf("%s/%s-%d", req.StoryID, req.Kind, req.Ordinal),
		MIME:       req.SourceMIME,
		Meta:       req.Meta,
	}
	f.assets[slotKey(req.Kind, req.Ordinal)] = asset
	clone := *asset
	return &clone, nil
}

func (f *fakeAssets) ResolveURL(key string) string {
	return "http://files.test/" + key
}

// fakeGenerator counts Generate calls and can fail selected ordinals by
// prompt marker.
type fakeGenerator struct {
	calls    atomic.Int64
	failWhen func(image.GenerateRequest) error
}

func (f *fakeGenerator) Generate(_ context.Context, req image.GenerateRequest) (*image.Result, error) {
	f.calls.Add(1)
	if f.failWhen != nil {
		if err := f.failWhen(req); err != nil {
			return nil, err
		}
	}
	return &image.Result{URL: "http://provider.test/" + req.RequestID + ".png", MIME: "image/png"}, nil
}

// fakeTaskRunner resolves every created task immediately.
type fakeTaskRunner struct {
	created atomic.Int64
	waits   atomic.Int64
	waitErr error
}

func (f *fakeTaskRunner) CreateTask(_ context.Context, req video.CreateTaskRequest) (string, error) {
	n := f.created.Add(1)
	return fmt.Sprintf("task-%d-%s", n, req.RequestID), nil
}

func (f *fakeTaskRunner) WaitForTask(_ context.Context, taskID string, _ video.WaitOptions) (*video.TaskResult, error) {
	f.waits.Add(1)
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &video.TaskResult{
		VideoURL:     "http://provider.test/" + taskID + ".mp4",
		LastFrameURL: "http://provider.test/" + taskID + "-last.png",
	}, nil
}

func resultByOrdinal(t *testing.T, snap domain.Snapshot, ordinal int) domain.ItemResult {
	t.Helper()
	for _, item := range snap.Items {
		if item.Ordinal == ordinal {
			return item
		}
	}
	t.Fatalf("no result for ordinal %d in %+v", ordinal, snap.Items)
	return domain.ItemResult{}
}
