package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"

	"github.com/Debayan00100101/chatt/internal/api"
	"github.com/Debayan00100101/chatt/internal/blob"
	"github.com/Debayan00100101/chatt/internal/cache"
	"github.com/Debayan00100101/chatt/internal/config"
	"github.com/Debayan00100101/chatt/internal/logger"
	"github.com/Debayan00100101/chatt/internal/repository"
	"github.com/Debayan00100101/chatt/internal/service"
)

func main() {
	_ = godotenv.Load()

	path := os.Getenv("APP_CONFIG")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Config{
		Development: cfg.App.Env == "development",
		Level:       cfg.Log.Level,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db, err := repository.Open(cfg.Chat.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	var blobs blob.Store
	switch cfg.Blob.Backend {
	case "s3":
		blobs, err = blob.NewS3Store(context.Background(), cfg.AWS.Region, cfg.AWS.Bucket, cfg.AWS.Endpoint, log)
		if err != nil {
			log.Fatalf("s3 init: %v", err)
		}
	default:
		blobs, err = blob.NewLocalStore(afero.NewOsFs(), cfg.Blob.Dir, log)
		if err != nil {
			log.Fatalf("blob dir init: %v", err)
		}
	}

	var msgCache service.Cache = cache.Noop{}
	var redisCache *cache.MessageCache
	if cfg.Redis.Addr != "" {
		redisCache, err = cache.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix, cfg.CacheTTL, log)
		if err != nil {
			log.Fatalf("redis init: %v", err)
		}
		msgCache = redisCache
	}

	svc := service.New(
		repository.NewMessageRepo(db),
		repository.NewPresenceRepo(db),
		repository.NewAlertRepo(db),
		blobs,
		msgCache,
		service.Options{
			OnlineWindow: cfg.OnlineWindow,
			AlertLimit:   cfg.Chat.AlertLimit,
			Owners:       cfg.OwnerSet(),
		},
		log,
	)

	app := api.NewServer(svc, log)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		log.Infof("starting chat service on %s", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutdown requested")

	_ = app.ShutdownWithTimeout(cfg.ShutdownTimeout)
	if redisCache != nil {
		_ = redisCache.Close()
	}
	log.Info("shutdown completed")
}
