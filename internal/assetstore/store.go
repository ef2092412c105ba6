// Package assetstore persists generated media exactly once per slot. The
// slot (story, kind, ordinal) is guarded by a database unique constraint
// rather than in-process locking, because writers may live in different
// processes.
package assetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
	"storyboard/internal/storage"
)

// Store implements idempotent keyed persistence for generated media.
type Store struct {
	sql        infra.SQLExecutor
	files      *storage.FileStore
	httpClient *http.Client
	logger     infra.Logger
}

// New constructs a Store. A nil httpClient gets a default with a download
// timeout.
func New(sqlExec infra.SQLExecutor, files *storage.FileStore, httpClient *http.Client, logger infra.Logger) *Store {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Store{sql: sqlExec, files: files, httpClient: httpClient, logger: logger}
}

// PersistRequest describes one asset to persist. ThumbSourceURL optionally
// points at an auxiliary provider still (a video's last frame) to derive
// the thumbnail from; image kinds derive it from the primary content.
type PersistRequest struct {
	StoryID        string
	Kind           domain.AssetKind
	Ordinal        int
	SourceURL      string
	SourceMIME     string
	ThumbSourceURL string
	Meta           map[string]any
	Overwrite      bool
}

// FindBySlot returns the asset occupying the slot, or domain.ErrNotFound.
func (s *Store) FindBySlot(ctx context.Context, storyID string, kind domain.AssetKind, ordinal int) (*domain.Asset, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectAssetBySlot, storyID, string(kind), ordinal)
	asset, err := scanAsset(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}

// ListByStory returns every persisted asset of the story, ordered by kind
// and ordinal.
func (s *Store) ListByStory(ctx context.Context, storyID string) ([]domain.Asset, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListAssetsByStory, storyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, *asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

// Persist downloads the source content, re-homes it in storage and records
// the asset row.
//
// Without Overwrite the insert defers to whichever writer committed the
// slot first: a conflicting insert returns no row, and the committed row is
// re-read and returned instead. Callers must not assume their own content
// won. With Overwrite the newest call always wins via upsert.
func (s *Store) Persist(ctx context.Context, req PersistRequest) (*domain.Asset, error) {
	data, mime, err := s.fetch(ctx, req.SourceURL)
	if err != nil {
		return nil, &domain.StorageError{Op: "fetch source", Err: err}
	}
	if req.SourceMIME != "" {
		mime = req.SourceMIME
	}

	keyPrefix := fmt.Sprintf("stories/%s/%s", req.StoryID, req.Kind)
	key, _, err := s.files.UploadBuffer(ctx, data, mime, keyPrefix)
	if err != nil {
		return nil, &domain.StorageError{Op: "upload", Err: err}
	}

	thumbKey := s.deriveThumb(ctx, req, data)

	metaJSON, err := json.Marshal(req.Meta)
	if err != nil {
		return nil, &domain.StorageError{Op: "encode meta", Err: err}
	}

	if req.Overwrite {
		row := s.sql.QueryRow(ctx, sqlinline.QUpsertAsset,
			req.StoryID, string(req.Kind), req.Ordinal, key, thumbKey, mime, metaJSON)
		return scanAsset(row)
	}

	row := s.sql.QueryRow(ctx, sqlinline.QInsertAssetIfAbsent,
		req.StoryID, string(req.Kind), req.Ordinal, key, thumbKey, mime, metaJSON)
	asset, err := scanAsset(row)
	if err == nil {
		return asset, nil
	}
	if !infra.IsNoRows(err) && !infra.IsUniqueViolation(err) {
		return nil, err
	}

	// Lost the race (or the slot was already filled): the committed row
	// wins and the uploaded copy is orphaned, which is acceptable.
	s.logger.Debug().
		Str("story_id", req.StoryID).
		Str("kind", string(req.Kind)).
		Int("ordinal", req.Ordinal).
		Msg("assetstore: slot taken, reusing committed asset")
	existing, err := s.FindBySlot(ctx, req.StoryID, req.Kind, req.Ordinal)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// ResolveURL maps an asset storage key onto its public URL.
func (s *Store) ResolveURL(key string) string {
	return s.files.ResolveURL(key)
}

// ReadContent loads the stored bytes of an asset.
func (s *Store) ReadContent(ctx context.Context, asset *domain.Asset) ([]byte, error) {
	return s.files.Read(ctx, asset.StorageKey)
}

func (s *Store) deriveThumb(ctx context.Context, req PersistRequest, primary []byte) string {
	source := primary
	if req.ThumbSourceURL != "" {
		data, _, err := s.fetch(ctx, req.ThumbSourceURL)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("story_id", req.StoryID).
				Int("ordinal", req.Ordinal).
				Msg("assetstore: fetch thumb source failed")
			return ""
		}
		source = data
	} else if req.Kind == domain.AssetKindVideoClip {
		// No auxiliary still to derive from.
		return ""
	}

	thumb, err := storage.GenerateThumbnail(source, storage.DefaultThumbMaxDim)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("story_id", req.StoryID).
			Int("ordinal", req.Ordinal).
			Msg("assetstore: thumbnail derivation failed")
		return ""
	}
	keyPrefix := fmt.Sprintf("stories/%s/%s/thumbs", req.StoryID, req.Kind)
	key, _, err := s.files.UploadBuffer(ctx, thumb, "image/jpeg", keyPrefix)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("story_id", req.StoryID).
			Int("ordinal", req.Ordinal).
			Msg("assetstore: upload thumbnail failed")
		return ""
	}
	return key
}

func (s *Store) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	return data, mime, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanAsset(row scannable) (*domain.Asset, error) {
	var (
		asset    domain.Asset
		thumbKey *string
		metaJSON []byte
	)
	if err := row.Scan(
		&asset.ID,
		&asset.StoryID,
		&asset.Kind,
		&asset.Ordinal,
		&asset.StorageKey,
		&thumbKey,
		&asset.MIME,
		&metaJSON,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if thumbKey != nil {
		asset.ThumbKey = *thumbKey
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &asset.Meta); err != nil {
			return nil, fmt.Errorf("decode asset meta: %w", err)
		}
	}
	return &asset, nil
}
