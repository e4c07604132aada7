package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const fieldJobID = "jobId"

// Publisher hands analysis job ids to workers over a redis stream.
// Delivery downstream is at-least-once.
type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Enqueue(ctx context.Context, jobID string) error {
	if p.client == nil {
		return fmt.Errorf("queue not configured")
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{fieldJobID: jobID},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
