package scheduler

import (
	"context"
	"fmt"

	"recovery_backend/platform/config"
	"recovery_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// UploadProcessor applies a queued upload job and releases the submission
// lock identified by lockToken.
type UploadProcessor interface {
	ProcessQueued(ctx context.Context, organizationID, jobID uuid.UUID, lockToken string) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor UploadProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, processor UploadProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newWorker(processor, log)
	w.server = server
	return w, nil
}

func newWorker(processor UploadProcessor, log *logger.Logger) *Worker {
	w := &Worker{
		mux:       asynq.NewServeMux(),
		processor: processor,
		log:       log,
	}
	w.mux.HandleFunc(TaskCaseUpload, w.handleCaseUpload)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleCaseUpload never asks for a retry. A failed job is already marked
// failed and its lock released.
func (w *Worker) handleCaseUpload(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCaseUploadPayload(task)
	if err != nil {
		return fmt.Errorf("parse case upload payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %v: %w", err, asynq.SkipRetry)
	}
	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return fmt.Errorf("invalid organization id: %v: %w", err, asynq.SkipRetry)
	}

	w.log.Info("case upload started", "job_id", payload.JobID, "organization_id", payload.OrganizationID)
	if err := w.processor.ProcessQueued(ctx, orgID, jobID, payload.LockToken); err != nil {
		return fmt.Errorf("case upload %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}
	w.log.Info("case upload finished", "job_id", payload.JobID)
	return nil
}
