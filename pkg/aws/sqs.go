package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	receiveBatch = 10
	// visibilityTimeout must outlast one handler run including the
	// dispatcher's retries.
	visibilityTimeout = 120
	pollRetryDelay    = 2 * time.Second
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// MessageHandler processes a single SQS message body.
type MessageHandler func(ctx context.Context, body string) error

// QueueSender enqueues a message body.
type QueueSender interface {
	SendMessage(ctx context.Context, body string) error
}

// SQSQueue sends to and polls a single queue.
type SQSQueue struct {
	client     sqsAPI
	queueURL   string
	logger     *zap.Logger
	retryDelay time.Duration
}

func NewSQSQueue(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSQueue {
	return &SQSQueue{
		client:     sqs.NewFromConfig(cfg),
		queueURL:   queueURL,
		logger:     logger,
		retryDelay: pollRetryDelay,
	}
}

// StartPolling long-polls the queue until ctx is cancelled. Messages are
// deleted only after handler succeeds; failed ones reappear after the
// visibility timeout.
func (q *SQSQueue) StartPolling(ctx context.Context, handler MessageHandler) error {
	q.logger.Info("SQS polling started", zap.String("queue", q.queueURL))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("SQS polling stopped")
			return ctx.Err()
		default:
		}

		if err := q.pollOnce(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.Warn("SQS poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(q.retryDelay):
			}
		}
	}
}

func (q *SQSQueue) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            sdkaws.String(q.queueURL),
		MaxNumberOfMessages: receiveBatch,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   visibilityTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	// Messages in a batch are handled in parallel so a slow one does not
	// hold the rest past their visibility timeout.
	var g errgroup.Group
	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}
		g.Go(func() error {
			q.handle(ctx, msg, handler)
			return nil
		})
	}
	return g.Wait()
}

func (q *SQSQueue) handle(ctx context.Context, msg types.Message, handler MessageHandler) {
	if err := handler(ctx, *msg.Body); err != nil {
		q.logger.Warn("SQS message handler failed",
			zap.String("message_id", sdkaws.ToString(msg.MessageId)),
			zap.Error(err),
		)
		return
	}

	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      sdkaws.String(q.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		q.logger.Warn("SQS delete failed", zap.Error(err))
	}
}

// SendMessage sends a single message to the queue.
func (q *SQSQueue) SendMessage(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(q.queueURL),
		MessageBody: sdkaws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
