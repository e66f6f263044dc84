package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/cache"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const idempotencyTTL = 10 * time.Minute

type CartService interface {
	Get(ctx context.Context, accountID uuid.UUID) (*models.CartView, error)
	// Add puts quantity more of a product in the cart. A repeated
	// idempotencyKey within ten minutes returns the cart unchanged.
	Add(ctx context.Context, accountID, productID uuid.UUID, quantity int, idempotencyKey string) (*models.CartView, error)
	Increase(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error)
	Decrease(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error)
	SetQuantity(ctx context.Context, accountID, productID uuid.UUID, quantity int) (*models.CartView, error)
	Remove(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error)
	Clear(ctx context.Context, accountID uuid.UUID) (*models.CartView, error)
	Merge(ctx context.Context, accountID uuid.UUID, items []models.MergeCartItem) (*models.MergeCartResponse, error)
}

type cartService struct {
	store    repository.Store
	cache    cache.CartCache
	guard    cache.Guard
	metrics  MetricsRecorder
	currency string
	log      *zap.Logger
	sfg      singleflight.Group
}

func NewCartService(store repository.Store, cartCache cache.CartCache, guard cache.Guard, metrics MetricsRecorder, currency string, log *zap.Logger) CartService {
	return &cartService{
		store:    store,
		cache:    cartCache,
		guard:    guard,
		metrics:  metrics,
		currency: currency,
		log:      log,
	}
}

func (s *cartService) Get(ctx context.Context, accountID uuid.UUID) (*models.CartView, error) {
	v, err, _ := s.sfg.Do(accountID.String(), func() (any, error) {
		if s.cache != nil {
			view, err := s.cache.Get(ctx, accountID)
			if err == nil {
				return view, nil
			}
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.log.Warn("cart cache read failed", zap.Error(err))
			}
		}

		// The generation is read before the load. A mutation that commits
		// in between bumps it and the write below is refused.
		var gen int64
		cacheable := s.cache != nil
		if cacheable {
			g, err := s.cache.Generation(ctx, accountID)
			if err != nil {
				s.log.Warn("cart cache generation read failed", zap.Error(err))
				cacheable = false
			}
			gen = g
		}

		view, err := s.load(ctx, accountID)
		if err != nil {
			return nil, err
		}

		if cacheable {
			go func() {
				setCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := s.cache.Set(setCtx, view, gen); err != nil {
					s.log.Warn("cart cache write failed", zap.Error(err))
				}
			}()
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CartView), nil
}

func (s *cartService) load(ctx context.Context, accountID uuid.UUID) (*models.CartView, error) {
	cart, err := s.store.Carts().FindByAccount(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.CartView{AccountID: accountID, Items: []models.CartLine{}, Currency: s.currency}, nil
	}
	if err != nil {
		return nil, dbError(err)
	}
	return buildCartView(cart, s.currency), nil
}

// buildCartView prices the cart. Lines for missing, deleted or inactive
// products are marked unavailable and left out of the totals.
func buildCartView(cart *models.Cart, currency string) *models.CartView {
	view := &models.CartView{
		ID:        cart.ID,
		AccountID: cart.AccountID,
		Items:     make([]models.CartLine, 0, len(cart.Items)),
		Currency:  currency,
		UpdatedAt: cart.UpdatedAt,
	}
	for _, item := range cart.Items {
		line := models.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
		if p := item.Product; p != nil {
			line.Name = p.Name
			line.Slug = p.Slug
			line.ImageURL = p.PrimaryImageURL()
			line.UnitPrice = p.Price
			line.Stock = p.Stock
			line.Available = p.IsActive && !p.DeletedAt.Valid
		}
		if line.Available {
			line.LineTotal = line.UnitPrice * int64(line.Quantity)
			view.Subtotal += line.LineTotal
			view.ItemCount += line.Quantity
		}
		view.Items = append(view.Items, line)
	}
	return view
}

// mutate runs fn with the account's cart row locked, then drops the cached
// view and returns a fresh one.
func (s *cartService) mutate(ctx context.Context, accountID uuid.UUID, op string, fn func(tx repository.Store, cart *models.Cart) error) (*models.CartView, error) {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetOrCreateForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		return tx.Carts().Touch(ctx, cart.ID)
	})
	if err != nil {
		return nil, dbError(err)
	}

	s.invalidate(ctx, accountID)
	recordAsync(s.metrics, s.log, aws_pkg.MetricCartMutations, map[string]string{"Operation": op})
	return s.load(ctx, accountID)
}

func (s *cartService) invalidate(ctx context.Context, accountID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, accountID); err != nil {
		s.log.Warn("cart cache invalidate failed", zap.String("account_id", accountID.String()), zap.Error(err))
	}
}

func activeProduct(ctx context.Context, tx repository.Store, productID uuid.UUID) (*models.Product, error) {
	p, err := tx.Products().FindByID(ctx, productID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrProductNotFound)
	}
	if !p.IsActive {
		return nil, apperrors.ErrProductNotFound
	}
	return p, nil
}

func quantityOutOfRange() error {
	return apperrors.WithDetails(apperrors.ErrInvalidQuantity, map[string]any{"max": models.MaxCartQuantity})
}

func insufficientStock(p *models.Product, requested int) error {
	return apperrors.WithDetails(apperrors.ErrInsufficientStock, map[string]any{
		"product_id": p.ID,
		"product":    p.Name,
		"available":  p.Stock,
		"requested":  requested,
	})
}

func existingItem(ctx context.Context, tx repository.Store, cartID, productID uuid.UUID) (*models.CartItem, error) {
	item, err := tx.Carts().FindItem(ctx, cartID, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, apperrors.ErrCartItemNotFound
	}
	return item, nil
}

// setItemQuantity writes qty for productID, checking stock. It never
// creates a second row for the same product.
func setItemQuantity(ctx context.Context, tx repository.Store, cartID uuid.UUID, item *models.CartItem, p *models.Product, qty int) error {
	if qty > models.MaxCartQuantity {
		return quantityOutOfRange()
	}
	if qty > p.Stock {
		return insufficientStock(p, qty)
	}
	if item == nil {
		return tx.Carts().CreateItem(ctx, &models.CartItem{CartID: cartID, ProductID: p.ID, Quantity: qty})
	}
	return tx.Carts().UpdateItemQuantity(ctx, item.ID, qty)
}

func (s *cartService) Add(ctx context.Context, accountID, productID uuid.UUID, quantity int, idempotencyKey string) (*models.CartView, error) {
	if quantity < 1 || quantity > models.MaxCartQuantity {
		return nil, quantityOutOfRange()
	}

	var guardKey string
	if idempotencyKey != "" && s.guard != nil {
		guardKey = cache.IdempotencyKey("cart-add", accountID.String(), idempotencyKey)
		fresh, err := s.guard.Acquire(ctx, guardKey, idempotencyTTL)
		if err != nil {
			s.log.Warn("idempotency check failed", zap.Error(err))
			guardKey = ""
		} else if !fresh {
			return s.load(ctx, accountID)
		}
	}

	view, err := s.mutate(ctx, accountID, "add", func(tx repository.Store, cart *models.Cart) error {
		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		item, err := tx.Carts().FindItem(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		qty := quantity
		if item != nil {
			if item.Quantity > models.MaxCartQuantity-quantity {
				return quantityOutOfRange()
			}
			qty += item.Quantity
		}
		return setItemQuantity(ctx, tx, cart.ID, item, p, qty)
	})
	if err != nil && guardKey != "" {
		if relErr := s.guard.Release(ctx, guardKey); relErr != nil {
			s.log.Warn("failed to release idempotency key", zap.Error(relErr))
		}
	}
	return view, err
}

func (s *cartService) Increase(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error) {
	return s.mutate(ctx, accountID, "increase", func(tx repository.Store, cart *models.Cart) error {
		item, err := existingItem(ctx, tx, cart.ID, productID)
		if err != nil {
			return err
		}
		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		return setItemQuantity(ctx, tx, cart.ID, item, p, item.Quantity+1)
	})
}

func (s *cartService) Decrease(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error) {
	return s.mutate(ctx, accountID, "decrease", func(tx repository.Store, cart *models.Cart) error {
		item, err := existingItem(ctx, tx, cart.ID, productID)
		if err != nil {
			return err
		}
		if item.Quantity <= 1 {
			return tx.Carts().DeleteItem(ctx, item.ID)
		}
		return tx.Carts().UpdateItemQuantity(ctx, item.ID, item.Quantity-1)
	})
}

func (s *cartService) SetQuantity(ctx context.Context, accountID, productID uuid.UUID, quantity int) (*models.CartView, error) {
	if quantity < 0 || quantity > models.MaxCartQuantity {
		return nil, quantityOutOfRange()
	}
	return s.mutate(ctx, accountID, "set", func(tx repository.Store, cart *models.Cart) error {
		item, err := existingItem(ctx, tx, cart.ID, productID)
		if err != nil {
			return err
		}
		if quantity == 0 {
			return tx.Carts().DeleteItem(ctx, item.ID)
		}
		if quantity <= item.Quantity {
			return tx.Carts().UpdateItemQuantity(ctx, item.ID, quantity)
		}
		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		return setItemQuantity(ctx, tx, cart.ID, item, p, quantity)
	})
}

func (s *cartService) Remove(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error) {
	return s.mutate(ctx, accountID, "remove", func(tx repository.Store, cart *models.Cart) error {
		item, err := existingItem(ctx, tx, cart.ID, productID)
		if err != nil {
			return err
		}
		return tx.Carts().DeleteItem(ctx, item.ID)
	})
}

func (s *cartService) Clear(ctx context.Context, accountID uuid.UUID) (*models.CartView, error) {
	return s.mutate(ctx, accountID, "clear", func(tx repository.Store, cart *models.Cart) error {
		return tx.Carts().ClearItems(ctx, cart.ID)
	})
}

func (s *cartService) Merge(ctx context.Context, accountID uuid.UUID, items []models.MergeCartItem) (*models.MergeCartResponse, error) {
	adjustments := []models.CartAdjustment{}
	view, err := s.mutate(ctx, accountID, "merge", func(tx repository.Store, cart *models.Cart) error {
		for _, in := range items {
			if in.Quantity < 1 || in.Quantity > models.MaxCartQuantity {
				return quantityOutOfRange()
			}
			p, err := activeProduct(ctx, tx, in.ProductID)
			if err != nil {
				if !errors.Is(err, apperrors.ErrProductNotFound) {
					return err
				}
				adjustments = append(adjustments, models.CartAdjustment{
					ProductID: in.ProductID, Requested: in.Quantity, Reason: "unavailable",
				})
				continue
			}

			item, err := tx.Carts().FindItem(ctx, cart.ID, in.ProductID)
			if err != nil {
				return err
			}
			current := 0
			if item != nil {
				current = item.Quantity
			}

			applied := in.Quantity
			if current+applied > p.Stock {
				applied = max(p.Stock-current, 0)
				adjustments = append(adjustments, models.CartAdjustment{
					ProductID: in.ProductID, Requested: in.Quantity, Applied: applied, Reason: "insufficient_stock",
				})
			}
			if applied == 0 {
				continue
			}
			if err := setItemQuantity(ctx, tx, cart.ID, item, p, current+applied); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &models.MergeCartResponse{Cart: view, Adjustments: adjustments}, nil
}
