package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"summercamp_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Dispatcher enqueues named tasks and cancels them by name.
type Dispatcher interface {
	// Enqueue schedules task under jobName at runAt. It returns false when a
	// task with that name is already queued.
	Enqueue(ctx context.Context, task *asynq.Task, jobName string, runAt time.Time) (bool, error)
	// Cancel deletes the queued task. Missing or already running tasks are ignored.
	Cancel(ctx context.Context, jobName string) error
}

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	queue     string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
		queue:     queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return errors.Join(c.client.Close(), c.inspector.Close())
}

func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, jobName string, runAt time.Time) (bool, error) {
	_, err := c.client.EnqueueContext(ctx, task,
		asynq.TaskID(jobName),
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", jobName, err)
	}
	return true, nil
}

func (c *Client) Cancel(_ context.Context, jobName string) error {
	info, err := c.inspector.GetTaskInfo(c.queue, jobName)
	if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect %s: %w", jobName, err)
	}
	if info.State == asynq.TaskStateActive {
		return nil
	}

	err = c.inspector.DeleteTask(c.queue, jobName)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return fmt.Errorf("delete %s: %w", jobName, err)
	}
	return nil
}

var _ Dispatcher = (*Client)(nil)

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
