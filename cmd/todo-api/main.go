package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"todo-list/api"
	"todo-list/config"
	"todo-list/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("TODO_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	var rc *redis.Client
	if cfg.Redis.ConnectionString != "" {
		redisOpts, err := config.ParseRedis(cfg.Redis.ConnectionString)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		rc = redis.NewClient(redisOpts)
		defer rc.Close()
	}

	store, err := storage.Open(cfg.Storage, rc)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			log.WithError(err).Warn("close storage")
		}
	}()

	var deduper api.Deduper
	if rc != nil {
		deduper = api.NewRedisDeduper(rc, cfg.Redis.DeduperTTL)
	} else {
		log.Warn("no redis configured; Idempotency-Key headers are ignored")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, storage.IdempotencyKeyHeader},
	}))

	logger := log.StandardLogger()
	api.Register(e, store, deduper, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(log.Fields{"addr": cfg.Listen, "backend": cfg.Storage.Backend}).Info("todo api listening")
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}
