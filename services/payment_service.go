package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PaymentService interface {
	// CreateForOrder records a payment and opens a Stripe intent for it.
	// The row is kept even when Stripe fails so the caller can retry.
	CreateForOrder(ctx context.Context, order *models.Order) (*models.Payment, error)
	GetForOrder(ctx context.Context, orderID, actorID uuid.UUID, ability *Ability) (*models.Payment, error)
	Retry(ctx context.Context, orderID, actorID uuid.UUID) (*models.Payment, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	CancelForOrder(ctx context.Context, orderID uuid.UUID)
}

type paymentService struct {
	store   repository.Store
	gateway PaymentGateway
	events  *eventSink
	metrics MetricsRecorder
	log     *zap.Logger
	now     func() time.Time
}

func NewPaymentService(store repository.Store, gateway PaymentGateway, publisher EventPublisher, topicArn string, queue aws_pkg.QueueSender, metrics MetricsRecorder, log *zap.Logger) PaymentService {
	return &paymentService{
		store:   store,
		gateway: gateway,
		events:  &eventSink{publisher: publisher, topicArn: topicArn, queue: queue, log: log},
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

func (s *paymentService) CreateForOrder(ctx context.Context, order *models.Order) (*models.Payment, error) {
	payment, err := s.store.Payments().FindByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, dbError(err)
	}
	if payment == nil {
		payment = &models.Payment{
			OrderID:   order.ID,
			AccountID: order.AccountID,
			Amount:    order.Total,
			Currency:  order.Currency,
			Status:    models.PaymentRequiresPayment,
		}
		if err := s.store.Payments().Create(ctx, payment); err != nil {
			return nil, dbError(err)
		}
	}
	if payment.ClientSecret != "" || payment.Status.IsTerminal() {
		return payment, nil
	}
	return payment, s.openIntent(ctx, payment, 0)
}

// openIntent creates a Stripe intent for payment and stores its id.
func (s *paymentService) openIntent(ctx context.Context, payment *models.Payment, attempt int) error {
	if !s.gateway.Enabled() {
		return nil
	}
	intent, err := s.gateway.CreateIntent(ctx, payment.Amount, payment.Currency,
		fmt.Sprintf("order-%s-%d", payment.OrderID, attempt),
		map[string]string{
			"order_id":   payment.OrderID.String(),
			"account_id": payment.AccountID.String(),
			"payment_id": payment.ID.String(),
		})
	if err != nil {
		s.log.Error("failed to create payment intent",
			zap.String("order_id", payment.OrderID.String()), zap.Error(err))
		return apperrors.Wrap(apperrors.ErrPaymentFailed, err)
	}

	payment.StripePaymentIntentID = &intent.ID
	payment.ClientSecret = intent.ClientSecret
	payment.Status = models.PaymentRequiresPayment
	payment.FailureReason = ""
	payment.FailedAt = nil
	if err := s.store.Payments().Update(ctx, payment); err != nil {
		return dbError(err)
	}
	return nil
}

func (s *paymentService) GetForOrder(ctx context.Context, orderID, actorID uuid.UUID, ability *Ability) (*models.Payment, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOrderNotFound)
	}
	if !ability.CanOwn(ActionRead, SubjectOrder, order.AccountID, actorID) {
		return nil, apperrors.ErrOrderNotFound
	}
	payment, err := s.store.Payments().FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.WithMessage(apperrors.ErrNotFound, "Payment not found"))
	}
	return payment, nil
}

func (s *paymentService) Retry(ctx context.Context, orderID, actorID uuid.UUID) (*models.Payment, error) {
	order, err := s.store.Orders().FindByIDAndAccount(ctx, orderID, actorID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOrderNotFound)
	}
	if order.Status != models.OrderPending {
		return nil, apperrors.WithDetails(apperrors.ErrInvalidOrder, map[string]string{"status": string(order.Status)})
	}

	payment, err := s.store.Payments().FindByOrderID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.CreateForOrder(ctx, order)
	}
	if err != nil {
		return nil, dbError(err)
	}
	if payment.Status.IsTerminal() {
		return nil, apperrors.WithDetails(apperrors.ErrInvalidOrder, map[string]string{"payment_status": string(payment.Status)})
	}
	if payment.Status == models.PaymentRequiresPayment && payment.ClientSecret != "" {
		return payment, nil
	}

	if payment.StripePaymentIntentID != nil {
		if err := s.gateway.CancelIntent(ctx, *payment.StripePaymentIntentID); err != nil {
			s.log.Warn("failed to cancel previous payment intent", zap.Error(err))
		}
	}
	if err := s.openIntent(ctx, payment, int(s.now().Unix())); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		s.log.Warn("stripe webhook signature verification failed", zap.Error(err))
		return apperrors.WithMessage(apperrors.ErrBadRequest, "Invalid webhook signature")
	}

	s.log.Info("processing stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	var status models.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = models.PaymentSucceeded
	case "payment_intent.payment_failed":
		status = models.PaymentFailed
	case "payment_intent.canceled":
		status = models.PaymentCanceled
	default:
		s.log.Info("unhandled webhook event type", zap.String("event_type", string(event.Type)))
		return nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return apperrors.Wrap(apperrors.ErrBadRequest, err)
	}
	return s.applyIntentStatus(ctx, &pi, status, payload)
}

func (s *paymentService) applyIntentStatus(ctx context.Context, pi *stripe.PaymentIntent, status models.PaymentStatus, raw []byte) error {
	var (
		applied  bool
		order    *models.Order
		orphaned *models.Order
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		payment, err := tx.Payments().FindByIntentIDForUpdate(ctx, pi.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("payment not found for intent", zap.String("payment_intent_id", pi.ID))
			return nil
		}
		if err != nil {
			return err
		}
		if payment.Status.IsTerminal() {
			s.log.Info("skipping duplicate payment webhook",
				zap.String("payment_id", payment.ID.String()),
				zap.String("status", string(payment.Status)),
			)
			return nil
		}

		now := s.now()
		payload := string(raw)
		payment.Status = status
		payment.StripeEventPayload = &payload
		switch status {
		case models.PaymentSucceeded:
			payment.SucceededAt = &now
			payment.FailureReason = ""
		case models.PaymentFailed:
			payment.FailedAt = &now
			payment.FailureReason = failureReason(pi)
			payment.ClientSecret = ""
		case models.PaymentCanceled:
			payment.ClientSecret = ""
		}
		if err := tx.Payments().Update(ctx, payment); err != nil {
			return err
		}
		applied = true

		if status != models.PaymentSucceeded {
			return nil
		}
		o, err := tx.Orders().FindByIDForUpdate(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		if o.Status == models.OrderPending {
			if err := tx.Orders().UpdateFields(ctx, o.ID, map[string]any{
				"status":  models.OrderPaid,
				"paid_at": now,
			}); err != nil {
				return err
			}
			o.Status = models.OrderPaid
			o.PaidAt = &now
			order = o
			return nil
		}

		s.log.Error("payment captured for order that is not pending, flagged for refund",
			zap.String("order_id", o.ID.String()),
			zap.String("payment_id", payment.ID.String()),
			zap.String("status", string(o.Status)),
		)
		payment.RequiresRefund = true
		orphaned = o
		return tx.Payments().Update(ctx, payment)
	})
	if err != nil {
		return dbError(err)
	}
	if !applied {
		return nil
	}

	switch status {
	case models.PaymentSucceeded:
		recordAsync(s.metrics, s.log, aws_pkg.MetricPaymentSucceeded, nil)
	case models.PaymentFailed:
		recordAsync(s.metrics, s.log, aws_pkg.MetricPaymentFailed, nil)
	}

	if order != nil {
		s.events.publishOrder(ctx, models.EventOrderPaid, order)
		s.notifyPaid(ctx, order)
	}
	if orphaned != nil {
		recordAsync(s.metrics, s.log, aws_pkg.MetricPaymentOrphaned, nil)
		s.events.publishOrder(ctx, models.EventPaymentRequiresRefund, orphaned)
	}
	return nil
}

func (s *paymentService) notifyPaid(ctx context.Context, order *models.Order) {
	account, err := s.store.Accounts().FindByID(ctx, order.AccountID)
	if err != nil {
		s.log.Warn("order confirmation skipped, account lookup failed", zap.Error(err))
		return
	}
	channel, to := contactFor(account)
	s.events.enqueue(ctx, models.NotificationJob{
		Type:    models.NotificationOrderConfirmation,
		Channel: channel,
		To:      to,
		Subject: "Order " + order.OrderNumber + " confirmed",
		Body: fmt.Sprintf("Thanks for your order! We received payment of %s for order %s.",
			formatAmount(order.Total, order.Currency), order.OrderNumber),
	})
}

func (s *paymentService) CancelForOrder(ctx context.Context, orderID uuid.UUID) {
	payment, err := s.store.Payments().FindByOrderID(ctx, orderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("payment lookup failed during cancel", zap.Error(err))
		}
		return
	}
	if payment.Status.IsTerminal() {
		return
	}
	if payment.StripePaymentIntentID != nil && s.gateway.Enabled() {
		if err := s.gateway.CancelIntent(ctx, *payment.StripePaymentIntentID); err != nil {
			// The intent may still succeed. Leave the row open so the
			// webhook is applied and flagged instead of skipped.
			s.log.Warn("failed to cancel payment intent",
				zap.String("order_id", orderID.String()), zap.Error(err))
			return
		}
	}
	payment.Status = models.PaymentCanceled
	payment.ClientSecret = ""
	if err := s.store.Payments().Update(ctx, payment); err != nil {
		s.log.Error("failed to mark payment canceled", zap.Error(err))
	}
}

func failureReason(pi *stripe.PaymentIntent) string {
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		return pi.LastPaymentError.Msg
	}
	return "payment failed"
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, currency)
}
