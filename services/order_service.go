package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/cache"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderService interface {
	Checkout(ctx context.Context, accountID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error)
	ListMine(ctx context.Context, accountID uuid.UUID, filter models.OrderFilter) (*models.ListResponse[models.Order], error)
	GetMine(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error)

	ListAll(ctx context.Context, filter models.OrderFilter) (*models.ListResponse[models.Order], error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error)
}

type orderService struct {
	store    repository.Store
	payments PaymentService
	carts    cache.CartCache
	products ProductCacheInvalidator
	events   *eventSink
	metrics  MetricsRecorder
	currency string
	log      *zap.Logger
	now      func() time.Time
}

func NewOrderService(
	store repository.Store,
	payments PaymentService,
	cartCache cache.CartCache,
	products ProductCacheInvalidator,
	publisher EventPublisher,
	topicArn string,
	queue aws_pkg.QueueSender,
	metrics MetricsRecorder,
	currency string,
	log *zap.Logger,
) OrderService {
	return &orderService{
		store:    store,
		payments: payments,
		carts:    cartCache,
		products: products,
		events:   &eventSink{publisher: publisher, topicArn: topicArn, queue: queue, log: log},
		metrics:  metrics,
		currency: currency,
		log:      log,
		now:      time.Now,
	}
}

func (s *orderService) Checkout(ctx context.Context, accountID uuid.UUID, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	var order *models.Order
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetOrCreateForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		cart, err = tx.Carts().FindByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return apperrors.WithMessage(apperrors.ErrInvalidOrder, "Cart is empty")
		}

		// Lock products in a stable order so concurrent checkouts cannot deadlock.
		items := append([]models.CartItem(nil), cart.Items...)
		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.String() < items[j].ProductID.String()
		})

		now := s.now()
		o := &models.Order{
			OrderNumber: newOrderNumber(now),
			AccountID:   accountID,
			Status:      models.OrderPending,
			Currency:    s.currency,
			Shipping:    req.Shipping,
		}
		for _, item := range items {
			product, err := tx.Products().FindByIDForUpdate(ctx, item.ProductID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return insufficientStock(&models.Product{ID: item.ProductID}, item.Quantity)
			}
			if err != nil {
				return err
			}
			if !product.IsActive {
				gone := *product
				gone.Stock = 0
				return insufficientStock(&gone, item.Quantity)
			}
			if product.Stock < item.Quantity {
				return insufficientStock(product, item.Quantity)
			}
			ok, err := tx.Products().AdjustStock(ctx, product.ID, -item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return insufficientStock(product, item.Quantity)
			}

			line := product.Price * int64(item.Quantity)
			o.Items = append(o.Items, models.OrderItem{
				ProductID: product.ID,
				Name:      product.Name,
				SKU:       product.SKU,
				UnitPrice: product.Price,
				Quantity:  item.Quantity,
				LineTotal: line,
			})
			o.Subtotal += line
		}

		o.Total = o.Subtotal
		if code := strings.TrimSpace(req.DiscountCode); code != "" {
			quote, err := redeemDiscount(ctx, tx, code, o.Subtotal, now)
			if err != nil {
				return err
			}
			o.DiscountCode = quote.Code
			o.Discount = quote.Discount
			o.Total = quote.Total
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if err := tx.Carts().ClearItems(ctx, cart.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total),
	)
	s.afterStockChange(ctx, accountID)

	resp := &models.CheckoutResponse{Order: order}
	payment, err := s.payments.CreateForOrder(ctx, order)
	if err != nil {
		s.log.Warn("payment not initialized for order",
			zap.String("order_id", order.ID.String()), zap.Error(err))
	}
	resp.Payment = payment

	s.events.publishOrder(ctx, models.EventOrderCreated, order)
	recordAsync(s.metrics, s.log, aws_pkg.MetricOrdersCreated, nil)
	return resp, nil
}

func (s *orderService) ListMine(ctx context.Context, accountID uuid.UUID, filter models.OrderFilter) (*models.ListResponse[models.Order], error) {
	filter.AccountID = &accountID
	return s.list(ctx, filter)
}

func (s *orderService) ListAll(ctx context.Context, filter models.OrderFilter) (*models.ListResponse[models.Order], error) {
	return s.list(ctx, filter)
}

func (s *orderService) list(ctx context.Context, filter models.OrderFilter) (*models.ListResponse[models.Order], error) {
	filter.Page, filter.Limit = models.NormalizePage(filter.Page, filter.Limit)
	orders, total, err := s.store.Orders().FindAll(ctx, filter)
	if err != nil {
		return nil, dbError(err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &models.ListResponse[models.Order]{
		Data: orders,
		Meta: models.NewListMeta(filter.Page, filter.Limit, total),
	}, nil
}

func (s *orderService) GetMine(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().FindByIDAndAccount(ctx, orderID, accountID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOrderNotFound)
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOrderNotFound)
	}
	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, accountID, orderID uuid.UUID) (*models.Order, error) {
	if _, err := s.GetMine(ctx, accountID, orderID); err != nil {
		return nil, err
	}
	order, err := s.transition(ctx, orderID, models.OrderCanceled, true)
	if err != nil {
		return nil, err
	}
	s.notifyCanceled(ctx, order)
	return order, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	order, err := s.transition(ctx, orderID, status, false)
	if err != nil {
		return nil, err
	}
	if status == models.OrderCanceled {
		s.notifyCanceled(ctx, order)
	}
	return order, nil
}

// transition moves the order to next under a row lock. Canceling restocks
// every item and gives back the discount redemption in the same transaction.
func (s *orderService) transition(ctx context.Context, orderID uuid.UUID, next models.OrderStatus, byCustomer bool) (*models.Order, error) {
	var (
		order *models.Order
		prev  models.OrderStatus
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return notFoundAs(err, apperrors.ErrOrderNotFound)
		}
		prev = o.Status
		if !o.Status.CanTransitionTo(next) {
			if byCustomer {
				return apperrors.WithDetails(apperrors.ErrOrderNotCancelable, map[string]string{"status": string(o.Status)})
			}
			return apperrors.WithDetails(apperrors.ErrInvalidOrder, map[string]string{
				"from": string(o.Status),
				"to":   string(next),
			})
		}

		now := s.now()
		fields := map[string]any{"status": next}
		switch next {
		case models.OrderCanceled:
			fields["canceled_at"] = now
			o.CanceledAt = &now
			for _, item := range o.Items {
				ok, err := tx.Products().AdjustStock(ctx, item.ProductID, item.Quantity)
				if err != nil {
					return err
				}
				if !ok {
					s.log.Warn("restock skipped, product missing",
						zap.String("product_id", item.ProductID.String()))
				}
			}
			if o.DiscountCode != "" {
				if err := tx.Campaigns().ReleaseRedemption(ctx, o.DiscountCode); err != nil {
					return err
				}
			}
		case models.OrderPaid:
			fields["paid_at"] = now
			o.PaidAt = &now
		}
		if err := tx.Orders().UpdateFields(ctx, o.ID, fields); err != nil {
			return err
		}
		o.Status = next
		order = o
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	s.log.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)

	if next == models.OrderCanceled {
		s.payments.CancelForOrder(ctx, order.ID)
		if s.products != nil {
			if err := s.products.Invalidate(ctx); err != nil {
				s.log.Warn("product cache invalidation failed", zap.Error(err))
			}
		}
		s.events.publishOrder(ctx, models.EventOrderCanceled, order)
		recordAsync(s.metrics, s.log, aws_pkg.MetricOrdersCanceled, nil)
	} else {
		s.events.publishOrder(ctx, models.EventOrderStatus, order)
	}
	return order, nil
}

func (s *orderService) notifyCanceled(ctx context.Context, order *models.Order) {
	account, err := s.store.Accounts().FindByID(ctx, order.AccountID)
	if err != nil {
		s.log.Warn("cancel notification skipped, account lookup failed", zap.Error(err))
		return
	}
	channel, to := contactFor(account)
	s.events.enqueue(ctx, models.NotificationJob{
		Type:    models.NotificationOrderCanceled,
		Channel: channel,
		To:      to,
		Subject: "Order " + order.OrderNumber + " canceled",
		Body:    fmt.Sprintf("Your order %s has been canceled.", order.OrderNumber),
	})
}

// afterStockChange drops caches that still show pre-checkout state.
func (s *orderService) afterStockChange(ctx context.Context, accountID uuid.UUID) {
	if s.carts != nil {
		if err := s.carts.Invalidate(ctx, accountID); err != nil {
			s.log.Warn("cart cache invalidation failed", zap.Error(err))
		}
	}
	if s.products != nil {
		if err := s.products.Invalidate(ctx); err != nil {
			s.log.Warn("product cache invalidation failed", zap.Error(err))
		}
	}
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newOrderNumber returns ORD-YYYYMMDD-XXXXXX.
func newOrderNumber(now time.Time) string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		copy(b, strings.ReplaceAll(uuid.NewString(), "-", ""))
	}
	for i := range b {
		b[i] = orderNumberAlphabet[int(b[i])%len(orderNumberAlphabet)]
	}
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), b)
}
