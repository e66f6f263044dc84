package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
)

type MarketingService interface {
	CreateCampaign(ctx context.Context, req models.CampaignRequest) (*models.Campaign, error)
	UpdateCampaign(ctx context.Context, id uuid.UUID, req models.CampaignRequest) (*models.Campaign, error)
	DeleteCampaign(ctx context.Context, id uuid.UUID) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, page, limit int) ([]models.Campaign, int64, error)
	ListActive(ctx context.Context, kind models.CampaignKind) ([]models.Campaign, error)

	ValidateCode(ctx context.Context, code string, subtotal int64) (*models.DiscountQuote, error)
	Redeem(ctx context.Context, code string, subtotal int64) (*models.DiscountQuote, error)

	Subscribe(ctx context.Context, email string) error
	Unsubscribe(ctx context.Context, email string) error
}

type marketingService struct {
	store repository.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewMarketingService(store repository.Store, log *zap.Logger) MarketingService {
	return &marketingService{store: store, log: log, now: time.Now}
}

func applyCampaignRequest(c *models.Campaign, req models.CampaignRequest) error {
	if req.StartsAt != nil && req.EndsAt != nil && !req.EndsAt.After(*req.StartsAt) {
		return invalidField("ends_at", "gtfield")
	}
	code := strings.ToUpper(strings.TrimSpace(req.DiscountCode))
	if code != "" && req.DiscountPercent == 0 {
		return invalidField("discount_percent", "required_with")
	}

	c.Title = req.Title
	c.Subtitle = req.Subtitle
	c.Kind = req.Kind
	c.ImageURL = req.ImageURL
	c.LinkURL = req.LinkURL
	c.Position = req.Position
	c.IsActive = req.IsActive == nil || *req.IsActive
	c.StartsAt = req.StartsAt
	c.EndsAt = req.EndsAt
	c.DiscountCode = nil
	if code != "" {
		c.DiscountCode = &code
	}
	c.DiscountPercent = req.DiscountPercent
	c.MinOrderAmount = req.MinOrderAmount
	c.MaxRedemptions = req.MaxRedemptions
	return nil
}

func (s *marketingService) CreateCampaign(ctx context.Context, req models.CampaignRequest) (*models.Campaign, error) {
	c := &models.Campaign{}
	if err := applyCampaignRequest(c, req); err != nil {
		return nil, err
	}
	if err := s.store.Campaigns().Create(ctx, c); err != nil {
		return nil, dbError(err)
	}
	s.log.Info("campaign created", zap.String("campaign_id", c.ID.String()), zap.String("kind", string(c.Kind)))
	return c, nil
}

func (s *marketingService) UpdateCampaign(ctx context.Context, id uuid.UUID, req models.CampaignRequest) (*models.Campaign, error) {
	c, err := s.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyCampaignRequest(c, req); err != nil {
		return nil, err
	}
	if err := s.store.Campaigns().Update(ctx, c); err != nil {
		return nil, dbError(err)
	}
	return c, nil
}

func (s *marketingService) DeleteCampaign(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetCampaign(ctx, id); err != nil {
		return err
	}
	return dbError(s.store.Campaigns().Delete(ctx, id))
}

func (s *marketingService) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := s.store.Campaigns().FindByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, apperrors.WithMessage(apperrors.ErrNotFound, "Campaign not found"))
	}
	return c, nil
}

func (s *marketingService) ListCampaigns(ctx context.Context, page, limit int) ([]models.Campaign, int64, error) {
	campaigns, total, err := s.store.Campaigns().FindAll(ctx, page, limit)
	if err != nil {
		return nil, 0, dbError(err)
	}
	return campaigns, total, nil
}

func (s *marketingService) ListActive(ctx context.Context, kind models.CampaignKind) ([]models.Campaign, error) {
	campaigns, err := s.store.Campaigns().ListLive(ctx, kind, s.now())
	if err != nil {
		return nil, dbError(err)
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	return campaigns, nil
}

func (s *marketingService) ValidateCode(ctx context.Context, code string, subtotal int64) (*models.DiscountQuote, error) {
	quote, _, err := quoteDiscount(ctx, s.store, code, subtotal, s.now())
	return quote, err
}

func (s *marketingService) Redeem(ctx context.Context, code string, subtotal int64) (*models.DiscountQuote, error) {
	var quote *models.DiscountQuote
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		quote, err = redeemDiscount(ctx, tx, code, subtotal, s.now())
		return err
	})
	if err != nil {
		return nil, dbError(err)
	}
	return quote, nil
}

func (s *marketingService) Subscribe(ctx context.Context, email string) error {
	return dbError(s.store.Campaigns().UpsertSubscriber(ctx, strings.ToLower(strings.TrimSpace(email))))
}

func (s *marketingService) Unsubscribe(ctx context.Context, email string) error {
	return dbError(s.store.Campaigns().Unsubscribe(ctx, strings.ToLower(strings.TrimSpace(email))))
}

func discountRejected(reason string) *apperrors.Error {
	return apperrors.WithDetails(apperrors.ErrInvalidDiscount, map[string]string{"reason": reason})
}

// quoteDiscount prices code against subtotal without redeeming it.
func quoteDiscount(ctx context.Context, store repository.Store, code string, subtotal int64, now time.Time) (*models.DiscountQuote, *models.Campaign, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, nil, discountRejected("unknown")
	}
	c, err := store.Campaigns().FindByCode(ctx, code)
	if err != nil {
		return nil, nil, notFoundAs(err, discountRejected("unknown"))
	}
	if c.DiscountPercent <= 0 {
		return nil, nil, discountRejected("unknown")
	}
	if !c.LiveAt(now) {
		return nil, nil, discountRejected("expired")
	}
	if c.MaxRedemptions > 0 && c.Redemptions >= c.MaxRedemptions {
		return nil, nil, discountRejected("exhausted")
	}
	if subtotal < c.MinOrderAmount {
		return nil, nil, apperrors.WithDetails(apperrors.ErrInvalidDiscount, map[string]any{
			"reason":           "below_minimum",
			"min_order_amount": c.MinOrderAmount,
		})
	}

	discount := subtotal * int64(c.DiscountPercent) / 100
	return &models.DiscountQuote{
		Code:     code,
		Percent:  c.DiscountPercent,
		Discount: discount,
		Total:    subtotal - discount,
	}, c, nil
}

// redeemDiscount quotes and counts one redemption. Call inside a transaction.
func redeemDiscount(ctx context.Context, tx repository.Store, code string, subtotal int64, now time.Time) (*models.DiscountQuote, error) {
	quote, c, err := quoteDiscount(ctx, tx, code, subtotal, now)
	if err != nil {
		return nil, err
	}
	ok, err := tx.Campaigns().Redeem(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, discountRejected("exhausted")
	}
	return quote, nil
}
