package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yashrajoria/storefront-api/models"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"go.uber.org/zap"
)

// eventSink publishes order events and queues customer notifications.
// Both are best-effort: failures are logged and never fail the request.
type eventSink struct {
	publisher EventPublisher
	topicArn  string
	queue     aws_pkg.QueueSender
	log       *zap.Logger
}

func (e *eventSink) publishOrder(ctx context.Context, eventType string, order *models.Order) {
	if e.publisher == nil || e.topicArn == "" {
		return
	}
	evt := models.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		AccountID:   order.AccountID,
		Status:      order.Status,
		Total:       order.Total,
		Currency:    order.Currency,
		Timestamp:   time.Now().UTC(),
	}
	body, err := json.Marshal(evt)
	if err != nil {
		e.log.Error("failed to marshal order event", zap.Error(err))
		return
	}
	if err := e.publisher.PublishEvent(ctx, e.topicArn, eventType, body); err != nil {
		e.log.Warn("failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func (e *eventSink) enqueue(ctx context.Context, job models.NotificationJob) {
	if e.queue == nil || job.To == "" {
		return
	}
	body, err := json.Marshal(job)
	if err != nil {
		e.log.Error("failed to marshal notification job", zap.Error(err))
		return
	}
	if err := e.queue.SendMessage(ctx, string(body)); err != nil {
		e.log.Warn("failed to queue notification", zap.String("type", job.Type), zap.Error(err))
	}
}

// contactFor picks the address a notification about the account goes to.
func contactFor(a *models.Account) (models.OtpChannel, string) {
	if a.EmailAddress() != "" {
		return models.ChannelEmail, a.EmailAddress()
	}
	return models.ChannelSMS, a.PhoneNumber()
}
