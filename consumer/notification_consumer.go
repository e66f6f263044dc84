package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/notify"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"go.uber.org/zap"
)

// Poller delivers queue message bodies to a handler until ctx ends.
type Poller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

type Sender interface {
	Send(ctx context.Context, channel models.OtpChannel, to, subject, body string) (notify.SendResult, error)
}

// NotificationConsumer sends the customer notifications queued by the order
// and payment flows.
type NotificationConsumer struct {
	queue  Poller
	sender Sender
	logger *zap.Logger
}

func NewNotificationConsumer(queue Poller, sender Sender, logger *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{queue: queue, sender: sender, logger: logger}
}

// Start blocks until ctx is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) {
	c.logger.Info("notification consumer started")
	if err := c.queue.StartPolling(ctx, c.Handle); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("notification consumer stopped", zap.Error(err))
		return
	}
	c.logger.Info("notification consumer shutting down")
}

// snsEnvelope is the wrapper SNS adds when a topic fans out to SQS.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Handle processes one message body. A nil return deletes the message, so
// malformed or undeliverable jobs are dropped and only transient send
// failures are retried.
func (c *NotificationConsumer) Handle(ctx context.Context, body string) error {
	job, err := decodeJob(body)
	if err != nil {
		c.logger.Error("dropping malformed notification", zap.Error(err))
		return nil
	}
	if job.To == "" || job.Body == "" {
		c.logger.Warn("dropping notification without recipient or body", zap.String("type", job.Type))
		return nil
	}

	result, err := c.sender.Send(ctx, job.Channel, job.To, job.Subject, job.Body)
	if errors.Is(err, notify.ErrNotConfigured) {
		c.logger.Warn("notification channel not configured, dropping",
			zap.String("type", job.Type),
			zap.String("channel", string(job.Channel)),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("send %s notification: %w", job.Type, err)
	}

	c.logger.Info("notification sent",
		zap.String("type", job.Type),
		zap.String("channel", string(job.Channel)),
		zap.String("message_id", result.MessageID),
	)
	return nil
}

func decodeJob(body string) (models.NotificationJob, error) {
	var job models.NotificationJob

	var envelope snsEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return job, err
	}
	if envelope.Type == "Notification" && envelope.Message != "" {
		body = envelope.Message
	}

	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return job, err
	}
	if job.Channel == "" {
		job.Channel = models.ChannelEmail
	}
	if job.Channel != models.ChannelEmail && job.Channel != models.ChannelSMS {
		return job, fmt.Errorf("unknown channel %q", job.Channel)
	}
	return job, nil
}
