package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	FindByCode(ctx context.Context, code string) (*models.Campaign, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Campaign, int64, error)
	ListLive(ctx context.Context, kind models.CampaignKind, at time.Time) ([]models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Redeem increments the redemption count while under the limit and
	// reports whether a redemption was recorded.
	Redeem(ctx context.Context, id uuid.UUID) (bool, error)
	// ReleaseRedemption gives back one redemption of code.
	ReleaseRedemption(ctx context.Context, code string) error

	UpsertSubscriber(ctx context.Context, email string) error
	Unsubscribe(ctx context.Context, email string) error
}

type campaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

func (r *campaignRepository) Create(ctx context.Context, c *models.Campaign) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *campaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *campaignRepository) FindByCode(ctx context.Context, code string) (*models.Campaign, error) {
	var c models.Campaign
	if err := r.db.WithContext(ctx).Where("discount_code = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *campaignRepository) FindAll(ctx context.Context, page, limit int) ([]models.Campaign, int64, error) {
	var (
		campaigns []models.Campaign
		total     int64
	)
	page, limit = models.NormalizePage(page, limit)

	query := r.db.WithContext(ctx).Model(&models.Campaign{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&campaigns).Error
	return campaigns, total, err
}

func (r *campaignRepository) ListLive(ctx context.Context, kind models.CampaignKind, at time.Time) ([]models.Campaign, error) {
	var campaigns []models.Campaign
	query := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("starts_at IS NULL OR starts_at <= ?", at).
		Where("ends_at IS NULL OR ends_at > ?", at)
	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	err := query.Order("position ASC, created_at DESC").Find(&campaigns).Error
	return campaigns, err
}

func (r *campaignRepository) Update(ctx context.Context, c *models.Campaign) error {
	return r.db.WithContext(ctx).Save(c).Error
}

func (r *campaignRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Campaign{}, "id = ?", id).Error
}

func (r *campaignRepository) Redeem(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND (max_redemptions = 0 OR redemptions < max_redemptions)", id).
		Update("redemptions", gorm.Expr("redemptions + 1"))
	return res.RowsAffected == 1, res.Error
}

func (r *campaignRepository) ReleaseRedemption(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("discount_code = ? AND redemptions > 0", code).
		Update("redemptions", gorm.Expr("redemptions - 1")).Error
}

func (r *campaignRepository) UpsertSubscriber(ctx context.Context, email string) error {
	sub := &models.Subscriber{Email: email, SubscribedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]any{
			"unsubscribed_at": nil,
		}),
	}).Create(sub).Error
}

func (r *campaignRepository) Unsubscribe(ctx context.Context, email string) error {
	return r.db.WithContext(ctx).Model(&models.Subscriber{}).
		Where("email = ? AND unsubscribed_at IS NULL", email).
		Update("unsubscribed_at", time.Now()).Error
}
