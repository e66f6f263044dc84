package services

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventPublisher publishes domain events to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topicArn, eventType string, message []byte) error
}

type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// Notifier delivers a message over one channel.
type Notifier interface {
	Send(ctx context.Context, channel models.OtpChannel, to, subject, body string) (notify.SendResult, error)
}

// notFoundAs maps gorm.ErrRecordNotFound to base and any other error to an
// internal error.
func notFoundAs(err error, base *apperrors.Error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return base
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
}

func dbError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Wrap(apperrors.ErrConflict, err)
	}
	return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
}

// recordAsync sends a counter without holding up the request.
func recordAsync(m MetricsRecorder, log *zap.Logger, name string, dims map[string]string) {
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.RecordCount(ctx, name, dims); err != nil {
			log.Debug("metric not recorded", zap.String("metric", name), zap.Error(err))
		}
	}()
}
