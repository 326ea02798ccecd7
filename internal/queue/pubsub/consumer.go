// Package pubsub bridges a Google Cloud Pub/Sub subscription into the
// in-process task queue.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// Consumer receives task descriptors from a subscription and hands
// them to the queue the workers drain. Messages that fail to decode
// are acked and dropped; redelivery cannot fix a malformed payload.
type Consumer struct {
	client       *pubsub.Client
	subscription string
	queue        crawler.Queue
	logger       *zap.Logger
}

// NewConsumer connects to Pub/Sub using Application Default Credentials.
func NewConsumer(ctx context.Context, projectID, subscription string, queue crawler.Queue, logger *zap.Logger) (*Consumer, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &Consumer{
		client:       client,
		subscription: subscription,
		queue:        queue,
		logger:       logger,
	}, nil
}

// Run blocks receiving messages until the context finishes. The
// Pub/Sub client handles flow control and concurrency internally.
func (c *Consumer) Run(ctx context.Context) error {
	subscriber := c.client.Subscriber(c.subscription)
	err := subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		var desc crawler.TaskDescriptor
		if err := json.Unmarshal(msg.Data, &desc); err != nil {
			c.logger.Warn("dropping undecodable task message",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			msg.Ack()
			return
		}
		if err := c.queue.Enqueue(ctx, desc); err != nil {
			// Shutdown path; let the message redeliver.
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive from %s: %w", c.subscription, err)
	}
	return nil
}

// Close releases the underlying client connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}
