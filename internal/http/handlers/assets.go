package handlers

import (
	"fmt"
	"net/http"

	"storyboard/internal/domain"
	"storyboard/internal/storage"
	"storyboard/pkg/zip"
)

// ListAssets returns every persisted asset of a story with resolved URLs,
// ordered by kind and ordinal.
func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	storyID, ok := a.storyFromRequest(w, r)
	if !ok {
		return
	}
	assets, err := a.Assets.ListByStory(r.Context(), storyID)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: list assets failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		item := map[string]any{
			"id":         asset.ID,
			"kind":       asset.Kind,
			"ordinal":    asset.Ordinal,
			"url":        a.Assets.ResolveURL(asset.StorageKey),
			"mime":       asset.MIME,
			"meta":       asset.Meta,
			"created_at": asset.CreatedAt,
			"updated_at": asset.UpdatedAt,
		}
		if asset.ThumbKey != "" {
			item["thumb_url"] = a.Assets.ResolveURL(asset.ThumbKey)
		}
		items = append(items, item)
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ArchiveAssets streams all of a story's assets as one zip download.
func (a *App) ArchiveAssets(w http.ResponseWriter, r *http.Request) {
	storyID, ok := a.storyFromRequest(w, r)
	if !ok {
		return
	}
	assets, err := a.Assets.ListByStory(r.Context(), storyID)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: list assets failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load assets")
		return
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "story has no assets")
		return
	}

	entries := make([]zip.Entry, 0, len(assets))
	for _, asset := range assets {
		data, err := a.Assets.ReadContent(r.Context(), &asset)
		if err != nil {
			a.Logger.Warn().Err(err).
				Str("story_id", storyID).
				Str("asset_id", asset.ID).
				Msg("handlers: read asset content failed")
			continue
		}
		entries = append(entries, zip.Entry{
			Filename: archiveFilename(asset),
			Data:     data,
		})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusInternalServerError, "internal", "no asset content available")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: archive assets failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "story-"+storyID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func archiveFilename(asset domain.Asset) string {
	return fmt.Sprintf("%s-%03d%s", asset.Kind, asset.Ordinal, storage.ExtensionForMIME(asset.MIME))
}
