package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	fontsUniqueWindow = time.Minute
	mailMaxRetry      = 5
	mailTimeout       = 30 * time.Second
)

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueSendEmail enqueues a send-email task on the mail queue.
func (c *Client) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	task, err := NewSendEmailTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueMail), asynq.MaxRetry(mailMaxRetry), asynq.Timeout(mailTimeout))
}

// InvalidateFonts queues a font cache rebuild. Requests arriving while one is
// already queued are folded into it.
func (c *Client) InvalidateFonts(ctx context.Context) error {
	_, err := c.client.EnqueueContext(ctx, NewFontsInvalidateTask(), asynq.Queue(QueueDefault), asynq.Unique(fontsUniqueWindow))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
