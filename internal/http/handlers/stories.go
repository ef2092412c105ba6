package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"storyboard/internal/sqlinline"
)

type createStoryRequest struct {
	Title string `json:"title"`
}

// CreateStory registers a new story that generated assets can attach to.
func (a *App) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title is required")
		return
	}
	row := a.SQL.QueryRow(r.Context(), sqlinline.QInsertStory, title)
	var id string
	if err := row.Scan(&id); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: insert story failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create story")
		return
	}
	a.json(w, http.StatusCreated, map[string]string{"id": id, "title": title})
}
