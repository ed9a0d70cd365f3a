package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/yoockh/lumina/config"
	"github.com/yoockh/lumina/internal/api/handlers"
	"github.com/yoockh/lumina/internal/api/middleware"
	"github.com/yoockh/lumina/internal/api/routes"
	"github.com/yoockh/lumina/internal/cache"
	"github.com/yoockh/lumina/internal/events"
	"github.com/yoockh/lumina/internal/logger"
	"github.com/yoockh/lumina/internal/providers/imagegen"
	"github.com/yoockh/lumina/internal/providers/llm"
	"github.com/yoockh/lumina/internal/providers/stt"
	"github.com/yoockh/lumina/internal/services"
	"github.com/yoockh/lumina/internal/session"
	"github.com/yoockh/lumina/internal/storage"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}

	// Init Redis (optional)
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("redis init")
	}

	bg, cancel := context.WithCancel(context.Background())
	defer cancel()

	text, err := llm.NewVertexGemini(bg, cfg.GCPProjectID, cfg.GCPLocation, cfg.GeminiTextModel, services.ExpansionOptions())
	if err != nil {
		log.WithError(err).Fatal("vertex text model")
	}
	defer text.Close()

	img, err := imagegen.NewVertexImage(bg, cfg.GCPProjectID, cfg.GCPLocation, cfg.GeminiImageModel)
	if err != nil {
		log.WithError(err).Fatal("vertex image model")
	}
	defer img.Close()

	var store storage.ImageStore = storage.DataURLStore{}
	if cfg.GCSBucket != "" {
		up, err := storage.NewGCSUploader(bg, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Fatal("gcs")
		}
		defer up.Close()
		store = storage.UploadStore{Uploader: up, Prefix: "images/"}
	}

	var dictation services.DictationService
	if cfg.DictationEnabled {
		sp, err := stt.NewGoogleSpeech(bg)
		if err != nil {
			log.WithError(err).Fatal("speech")
		}
		defer sp.Close()
		dictation = services.NewDictationService(sp)
	}

	expansion := services.NewExpansionService(text)
	images := services.NewImageService(img, store, log)

	deps := services.StudioDeps{
		Expansion: expansion,
		Images:    images,
		ErrorHold: cfg.ErrorHold,
		Log:       log,
	}
	var notices cache.Cache
	if rdb := config.RedisClient; rdb != nil {
		defer rdb.Close()
		notices = cache.NewRedisCache(rdb, "lumina:")
		deps.Bus = events.NewRedisBus(rdb)
		log.Info("redis connected")
	} else {
		notices = cache.NewMemoryCache()
		deps.Bus = events.NewMemoryBus()
		log.Info("redis not configured, using in-process events and notices")
	}
	deps.NewInbox = func(ws string) session.Inbox { return session.NewCachedInbox(notices, ws, cfg.NoticeTTL) }
	studios := services.NewStudios(bg, deps)
	go studios.RunSweeper(bg, 0, cfg.StudioIdle)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Expand:           handlers.NewExpandHandler(expansion, images, dictation),
		Studio:           handlers.NewStudioHandler(studios, dictation, cfg.MaxBatchSize),
		WS:               handlers.NewWSHandler(studios, cfg.AllowedOrigins, log),
		DictationEnabled: dictation != nil,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	// stop background pipelines first so they stop publishing
	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	log.WithField("workspaces", studios.Len()).Info("stopped")
}
