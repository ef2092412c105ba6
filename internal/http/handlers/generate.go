package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storyboard/internal/domain"
	"storyboard/internal/jobstore"
	"storyboard/internal/sqlinline"
	"storyboard/internal/usecase"
)

type referenceImagesRequest struct {
	Items             []domain.ReferenceImageItem `json:"items"`
	OverwriteExisting bool                        `json:"overwrite_existing"`
}

type firstFramesRequest struct {
	Items             []domain.FirstFrameItem `json:"items"`
	OverwriteExisting bool                    `json:"overwrite_existing"`
}

type videoClipsRequest struct {
	Items             []domain.VideoClipItem `json:"items"`
	OverwriteExisting bool                   `json:"overwrite_existing"`
}

type jobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (a *App) GenerateReferenceImages(w http.ResponseWriter, r *http.Request) {
	storyID, ok := a.storyFromRequest(w, r)
	if !ok {
		return
	}
	var req referenceImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "items are required")
		return
	}
	a.submit(w, r, storyID, domain.JobTypeReferenceImages, len(req.Items),
		func(ctx context.Context, onItem jobstore.OnItem) (domain.Snapshot, error) {
			return a.RefImages.Run(ctx, storyID, req.Items, req.OverwriteExisting, usecase.OnItem(onItem))
		})
}

func (a *App) GenerateFirstFrames(w http.ResponseWriter, r *http.Request) {
	storyID, ok := a.storyFromRequest(w, r)
	if !ok {
		return
	}
	var req firstFramesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "items are required")
		return
	}
	a.submit(w, r, storyID, domain.JobTypeFirstFrames, len(req.Items),
		func(ctx context.Context, onItem jobstore.OnItem) (domain.Snapshot, error) {
			return a.FirstFrames.Run(ctx, storyID, req.Items, req.OverwriteExisting, usecase.OnItem(onItem))
		})
}

func (a *App) GenerateVideoClips(w http.ResponseWriter, r *http.Request) {
	storyID, ok := a.storyFromRequest(w, r)
	if !ok {
		return
	}
	var req videoClipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if len(req.Items) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "items are required")
		return
	}
	a.submit(w, r, storyID, domain.JobTypeVideoClips, len(req.Items),
		func(ctx context.Context, onItem jobstore.OnItem) (domain.Snapshot, error) {
			return a.VideoClips.Run(ctx, storyID, req.Items, req.OverwriteExisting, usecase.OnItem(onItem))
		})
}

// submit registers the job and runs the batch in the background. A batch
// always reaches a terminal snapshot; the caller tracks it by job id.
func (a *App) submit(w http.ResponseWriter, r *http.Request, storyID string, jobType domain.JobType, total int, exec jobstore.Exec) {
	job, err := a.Jobs.Create(r.Context(), storyID, jobType, total)
	if err != nil {
		a.Logger.Error().Err(err).Str("story_id", storyID).Msg("handlers: create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	go func() {
		ctx := context.Background()
		if err := a.Jobs.Run(ctx, job.ID, exec); err != nil && !domain.IsValidation(err) {
			a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("handlers: job run failed")
		}
	}()

	a.json(w, http.StatusAccepted, jobResponse{JobID: job.ID, Status: string(job.Status)})
}

func (a *App) storyFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	storyID := chi.URLParam(r, "story_id")
	if _, err := uuid.Parse(storyID); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "story_id must be a uuid")
		return "", false
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QSelectStoryByID, storyID)
	var id, title string
	var createdAt time.Time
	if err := row.Scan(&id, &title, &createdAt); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "story not found")
		return "", false
	}
	return storyID, true
}
