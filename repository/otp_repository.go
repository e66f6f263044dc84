package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"gorm.io/gorm"
)

type OtpRepository interface {
	Create(ctx context.Context, otp *models.Otp) error
	FindActive(ctx context.Context, accountID uuid.UUID, purpose models.OtpPurpose) (*models.Otp, error)
	InvalidateActive(ctx context.Context, accountID uuid.UUID, purpose models.OtpPurpose) error
	ConsumeAttempt(ctx context.Context, id uuid.UUID, maxAttempts int) (bool, error)
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateChannel(ctx context.Context, id uuid.UUID, channel models.OtpChannel, target string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	db *gorm.DB
}

func NewOtpRepository(db *gorm.DB) OtpRepository {
	return &otpRepository{db: db}
}

func (r *otpRepository) Create(ctx context.Context, otp *models.Otp) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

// FindActive returns the newest unused code for the purpose, expired or not.
func (r *otpRepository) FindActive(ctx context.Context, accountID uuid.UUID, purpose models.OtpPurpose) (*models.Otp, error) {
	var otp models.Otp
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND purpose = ? AND used_at IS NULL", accountID, purpose).
		Order("created_at DESC").
		First(&otp).Error
	if err != nil {
		return nil, err
	}
	return &otp, nil
}

func (r *otpRepository) InvalidateActive(ctx context.Context, accountID uuid.UUID, purpose models.OtpPurpose) error {
	return r.db.WithContext(ctx).Model(&models.Otp{}).
		Where("account_id = ? AND purpose = ? AND used_at IS NULL", accountID, purpose).
		Update("used_at", time.Now()).Error
}

// ConsumeAttempt counts one verification attempt against the code. It
// reports false when the code is used or already at maxAttempts.
func (r *otpRepository) ConsumeAttempt(ctx context.Context, id uuid.UUID, maxAttempts int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Otp{}).
		Where("id = ? AND used_at IS NULL AND attempts < ?", id, maxAttempts).
		Update("attempts", gorm.Expr("attempts + 1"))
	return res.RowsAffected == 1, res.Error
}

// MarkUsed consumes the code. It reports false when another request already
// consumed it.
func (r *otpRepository) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Otp{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", time.Now())
	return res.RowsAffected == 1, res.Error
}

func (r *otpRepository) UpdateChannel(ctx context.Context, id uuid.UUID, channel models.OtpChannel, target string) error {
	return r.db.WithContext(ctx).Model(&models.Otp{}).
		Where("id = ?", id).
		Updates(map[string]any{"channel": channel, "target": target}).Error
}

func (r *otpRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&models.Otp{})
	return res.RowsAffected, res.Error
}
