package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"recovery_backend/internal/adapters/storage"
	"recovery_backend/platform/config"
	"recovery_backend/platform/logger"
)

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.Nop(), "flaky", 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d calls", err, calls)
	}
}

func TestWithRetryReportsLastError(t *testing.T) {
	err := WithRetry(context.Background(), logger.Nop(), "db", 2, time.Millisecond, func() error {
		return errors.New("connection refused")
	})
	if err == nil || !strings.Contains(err.Error(), "db: connection refused") {
		t.Fatalf("unexpected error %v", err)
	}
	if err := WithRetry(context.Background(), logger.Nop(), "db", 0, time.Millisecond, func() error { return nil }); err == nil {
		t.Fatal("expected error for zero attempts")
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, logger.Nop(), "db", 5, time.Hour, func() error { return errors.New("down") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStorageFallsBackToMemory(t *testing.T) {
	svc, err := Storage(context.Background(), &config.Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if _, ok := svc.(*storage.MemoryService); !ok {
		t.Fatalf("expected in-memory storage, got %T", svc)
	}
}

func TestRedisOptional(t *testing.T) {
	client, err := Redis(context.Background(), &config.Config{}, logger.Nop())
	if err != nil || client != nil {
		t.Fatalf("expected nil client without REDIS_URL, got %v %v", client, err)
	}
}
