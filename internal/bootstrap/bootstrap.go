// Package bootstrap holds the infrastructure setup shared by the api, the
// worker and casectl.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/migrations"
	"recovery_backend/platform/config"
	"recovery_backend/platform/db"
	"recovery_backend/platform/logger"
	"recovery_backend/platform/redisx"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	retryAttempts  = 5
	retryBaseDelay = 2 * time.Second
)

// Database connects to Postgres with retries and, when migrate is set,
// applies the embedded migrations.
func Database(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger, migrate bool) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", retryAttempts, retryBaseDelay, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, err
	}
	log.Info("database connection established")

	if !migrate {
		return pool, nil
	}
	if err := WithRetry(ctx, log, "database migrations", retryAttempts, retryBaseDelay, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS, log)
	}); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("database migrations complete")
	return pool, nil
}

// Storage returns MinIO when configured and an in-memory store otherwise.
func Storage(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) (storage.StorageService, error) {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; using in-memory object storage")
		return storage.NewMemoryService(cfg.GetMinIOMaxFileSize()), nil
	}

	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		return nil, err
	}
	for _, bucket := range []string{cfg.GetMinioBucketCaseUploads(), cfg.GetMinioBucketSelfies()} {
		if err := WithRetry(ctx, log, "ensure "+bucket+" bucket", retryAttempts, retryBaseDelay, func() error {
			return svc.EnsureBucketExists(ctx, bucket)
		}); err != nil {
			return nil, fmt.Errorf("failed to ensure storage bucket exists: %w", err)
		}
	}
	log.Info("storage service initialized",
		"caseUploadsBucket", cfg.GetMinioBucketCaseUploads(),
		"selfiesBucket", cfg.GetMinioBucketSelfies(),
	)
	return svc, nil
}

// Redis connects when REDIS_URL is set. It returns a nil client otherwise.
func Redis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; uploads run inline and dashboards are not cached")
		return nil, nil
	}

	var client *redis.Client
	if err := WithRetry(ctx, log, "redis connection", retryAttempts, retryBaseDelay, func() error {
		c, err := redisx.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		client = c
		return nil
	}); err != nil {
		return nil, err
	}
	return client, nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
