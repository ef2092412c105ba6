package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"storyboard/internal/assetstore"
	"storyboard/internal/http/handlers"
	"storyboard/internal/http/httpapi"
	"storyboard/internal/infra"
	"storyboard/internal/jobstore"
	imageprovider "storyboard/internal/providers/image"
	videoprovider "storyboard/internal/providers/video"
	"storyboard/internal/storage"
	"storyboard/internal/usecase"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	imageClient, err := imageprovider.NewClient(imageprovider.Options{
		APIKey:     cfg.ImageAPIKey,
		BaseURL:    cfg.ImageBaseURL,
		Model:      cfg.ImageModel,
		HTTPClient: httpClient,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure image provider")
	}
	videoClient, err := videoprovider.NewClient(videoprovider.Options{
		APIKey:       cfg.VideoAPIKey,
		BaseURL:      cfg.VideoBaseURL,
		Model:        cfg.VideoModel,
		HTTPClient:   httpClient,
		Logger:       &logger,
		PollInterval: cfg.TaskPollInterval,
		WaitTimeout:  cfg.TaskWaitTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure video provider")
	}

	assets := assetstore.New(runner, fileStore, nil, logger)
	jobs := jobstore.New(runner, logger)

	app := &handlers.App{
		SQL:         runner,
		Jobs:        jobs,
		Assets:      assets,
		RefImages:   usecase.NewReferenceImages(assets, imageClient, logger, cfg.ImageConcurrency),
		FirstFrames: usecase.NewFirstFrames(assets, imageClient, logger, cfg.ImageConcurrency),
		VideoClips:  usecase.NewVideoClips(assets, videoClient, logger, cfg.VideoConcurrency, videoprovider.WaitOptions{}),
		Logger:      logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		StaticDir:          storagePath,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
