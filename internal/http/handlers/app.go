package handlers

import (
	"encoding/json"
	"net/http"

	"storyboard/internal/assetstore"
	"storyboard/internal/infra"
	"storyboard/internal/jobstore"
	"storyboard/internal/usecase"
)

// App carries the wired dependencies for all HTTP handlers.
type App struct {
	SQL         infra.SQLExecutor
	Jobs        *jobstore.Store
	Assets      *assetstore.Store
	RefImages   *usecase.ReferenceImages
	FirstFrames *usecase.FirstFrames
	VideoClips  *usecase.VideoClips
	Logger      infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
