package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/storefront-api/models"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("channel not configured")

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (SendResult, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, msg string) (SendResult, error)
}

// Disabled stands in for a channel with no credentials. Every send fails
// with ErrNotConfigured so callers fall back to the other channel.
type Disabled struct{}

func (Disabled) SendEmail(context.Context, string, string, string) (SendResult, error) {
	return SendResult{}, ErrNotConfigured
}

func (Disabled) SendSMS(context.Context, string, string) (SendResult, error) {
	return SendResult{}, ErrNotConfigured
}

// Dispatcher routes a message to the sender for its channel and retries
// transient failures with linear backoff.
type Dispatcher struct {
	email    EmailSender
	sms      SMSSender
	attempts int
	backoff  time.Duration
	log      *zap.Logger
}

func NewDispatcher(email EmailSender, sms SMSSender, log *zap.Logger) *Dispatcher {
	if email == nil {
		email = Disabled{}
	}
	if sms == nil {
		sms = Disabled{}
	}
	return &Dispatcher{email: email, sms: sms, attempts: 3, backoff: time.Second, log: log}
}

// WithRetry overrides the retry policy.
func (d *Dispatcher) WithRetry(attempts int, backoff time.Duration) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	d.attempts = attempts
	d.backoff = backoff
	return d
}

func (d *Dispatcher) Send(ctx context.Context, channel models.OtpChannel, to, subject, body string) (SendResult, error) {
	var lastErr error
	for attempt := 0; attempt < d.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return SendResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * d.backoff):
			}
		}

		var res SendResult
		switch channel {
		case models.ChannelEmail:
			res, lastErr = d.email.SendEmail(ctx, to, subject, body)
		case models.ChannelSMS:
			res, lastErr = d.sms.SendSMS(ctx, to, body)
		default:
			return SendResult{}, fmt.Errorf("unknown channel %q", channel)
		}
		if lastErr == nil {
			return res, nil
		}
		if errors.Is(lastErr, ErrNotConfigured) {
			return SendResult{}, lastErr
		}

		d.log.Warn("send attempt failed",
			zap.String("channel", string(channel)),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return SendResult{}, lastErr
}
