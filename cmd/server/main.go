package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/studyhub/drive/internal/config"
	"github.com/studyhub/drive/internal/database"
	"github.com/studyhub/drive/internal/handlers"
	"github.com/studyhub/drive/internal/metrics"
	"github.com/studyhub/drive/internal/middleware"
	"github.com/studyhub/drive/internal/ratelimit"
	"github.com/studyhub/drive/internal/services"
	"github.com/studyhub/drive/internal/storage"
	"github.com/studyhub/drive/internal/thumbnail"
	"github.com/studyhub/drive/pkg/logger"
	"github.com/studyhub/drive/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret)

	ctx := context.Background()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("content store initialization failed: %v", err)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Backend == "redis" {
		redisClient, err = database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
	}

	limiter, err := ratelimit.New(cfg.RateLimit, redisClient)
	if err != nil {
		log.Fatalf("rate limiter initialization failed: %v", err)
	}
	defer limiter.Close()

	deps := services.Dependencies{
		DB:        db,
		Store:     store,
		Metrics:   m,
		Fetcher:   services.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes),
		Drive:     cfg.Drive,
		Thumbnail: cfg.Thumbnail,
	}
	if cfg.Thumbnail.Enabled {
		deps.Thumbnailer = thumbnail.NewGenerator(cfg.Thumbnail)
	}
	svc := services.NewContainer(deps)

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.Origins()))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	handlers.RegisterRoutes(app, svc, limiter, m)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":               cfg.Server.Port,
		"address":            listenAddr,
		"body_limit_mb":      cfg.Server.BodyLimitMB,
		"db_driver":          cfg.DB.Driver,
		"storage_backend":    cfg.Storage.Backend,
		"rate_limit_backend": cfg.RateLimit.Backend,
		"thumbnails":         cfg.Thumbnail.Enabled,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
