package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"recovery_backend/internal/bootstrap"
	"recovery_backend/internal/events"
	reportservice "recovery_backend/internal/reports/service"
	"recovery_backend/internal/scheduler"
	"recovery_backend/internal/uploads"
	"recovery_backend/platform/config"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.Database(ctx, cfg, log, false)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	redisClient, err := bootstrap.Redis(ctx, cfg, log)
	if err != nil || redisClient == nil {
		log.Error("worker requires redis", "error", err)
		panic("worker requires REDIS_URL")
	}
	defer func() { _ = redisClient.Close() }()

	storageSvc, err := bootstrap.Storage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	// Uploads applied here must drop the dashboards the api caches.
	eventBus := events.NewInMemoryBus(log)
	reportservice.NewInvalidator(redisx.NewJSONCache(redisClient, "recovery:cache:", cfg.GetDashboardCacheTTL())).Subscribe(eventBus)

	locker := redisx.NewLocker(redisClient, "recovery:lock:")
	uploadSvc := uploads.NewService(pool, eventBus, storageSvc, cfg.GetMinioBucketCaseUploads(), cfg, locker, log)

	worker, err := scheduler.NewWorker(cfg, uploadSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}
