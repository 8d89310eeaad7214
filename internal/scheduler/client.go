package scheduler

import (
	"context"
	"fmt"
	"time"

	"recovery_backend/platform/config"
	"recovery_backend/platform/redisx"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Client struct {
	client        *asynq.Client
	queue         string
	uploadTimeout time.Duration
}

func NewClient(cfg config.SchedulerConfig, uploadTimeout time.Duration) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:        asynq.NewClient(opt),
		queue:         queueName(cfg),
		uploadTimeout: uploadTimeout,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueCaseUpload schedules a stored upload job. The task id is the job
// id, so a job is queued at most once.
func (c *Client) EnqueueCaseUpload(ctx context.Context, organizationID, jobID uuid.UUID, lockToken string) error {
	task, err := NewCaseUploadTask(CaseUploadPayload{
		JobID:          jobID.String(),
		OrganizationID: organizationID.String(),
		LockToken:      lockToken,
	})
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.TaskID(jobID.String()),
		asynq.MaxRetry(0),
	}
	if c.uploadTimeout > 0 {
		opts = append(opts, asynq.Timeout(c.uploadTimeout))
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redisx.ParseOptions(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
