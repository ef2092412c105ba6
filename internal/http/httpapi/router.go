package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"storyboard/internal/http/handlers"
	"storyboard/internal/middleware"
)

// Options carries router-level configuration.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	StaticDir          string
}

// NewRouter wires middleware, API routes and static asset serving.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		chimiddleware.Logger,
	)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.CORSAllowedOrigins))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/stories", func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/", app.CreateStory)
		r.Route("/{story_id}", func(r chi.Router) {
			r.Post("/generate/reference-images", app.GenerateReferenceImages)
			r.Post("/generate/first-frames", app.GenerateFirstFrames)
			r.Post("/generate/video-clips", app.GenerateVideoClips)
			r.Get("/assets", app.ListAssets)
			r.Get("/assets/archive", app.ArchiveAssets)
		})
	})

	r.Route("/v1/jobs/{job_id}", func(r chi.Router) {
		r.Get("/", app.GetJob)
		r.Get("/events", app.JobEvents)
		r.Get("/ws", app.JobSocket)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
