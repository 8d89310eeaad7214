package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recovery_backend/internal/actors"
	"recovery_backend/internal/bootstrap"
	"recovery_backend/internal/cases"
	"recovery_backend/internal/events"
	"recovery_backend/internal/followups"
	apphttp "recovery_backend/internal/http"
	"recovery_backend/internal/http/router"
	"recovery_backend/internal/payments"
	"recovery_backend/internal/reports"
	"recovery_backend/internal/scheduler"
	"recovery_backend/internal/uploads"
	uploadservice "recovery_backend/internal/uploads/service"
	"recovery_backend/platform/config"
	"recovery_backend/platform/db"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"
	"recovery_backend/platform/validator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	pool, err := bootstrap.Database(ctx, cfg, log, true)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		panic("failed to initialize database: " + err.Error())
	}
	defer pool.Close()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	storageSvc, err := bootstrap.Storage(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}

	redisClient, err := bootstrap.Redis(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	var locker *redisx.Locker
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		locker = redisx.NewLocker(redisClient, "recovery:lock:")
	}
	cache := redisx.NewJSONCache(redisClient, "recovery:cache:", cfg.GetDashboardCacheTTL())

	uploadQueue, closeQueue := initUploadQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	actorsModule := actors.NewModule(pool, val, log)
	casesModule := cases.NewModule(pool, eventBus, cfg.GetPhoneRegion(), val, log)
	followUpsModule := followups.NewModule(pool, eventBus, storageSvc, cfg.GetMinioBucketSelfies(), cfg.GetLocation(), cfg.GetCommitFulfilmentWindow(), val, log)
	paymentsModule := payments.NewModule(pool, eventBus, storageSvc, cfg.GetMinioBucketSelfies(), val, log)
	reportsModule := reports.NewModule(pool, eventBus, cache, cfg.GetLocation(), cfg.GetCommitFulfilmentWindow(), val, log)
	uploadSvc := uploads.NewService(pool, eventBus, storageSvc, cfg.GetMinioBucketCaseUploads(), cfg, locker, log)
	uploadsModule := uploads.NewModule(uploadSvc, uploadQueue, val)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:        cfg,
		Logger:        log,
		Health:        db.NewPoolAdapter(pool),
		EventBus:      eventBus,
		ActorResolver: actorsModule.Middleware(),
		Modules: []apphttp.Module{
			actorsModule,
			uploadsModule,
			casesModule,
			followUpsModule,
			paymentsModule,
			reportsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initUploadQueue(cfg *config.Config, log *logger.Logger) (uploadservice.Enqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg, cfg.GetUploadTimeout())
	if err != nil {
		log.Error("failed to initialize upload queue client; uploads run inline", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
