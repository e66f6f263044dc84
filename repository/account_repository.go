package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"gorm.io/gorm"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByPhone(ctx context.Context, phone string) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error)
	CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error)
	RevokeAllRefreshTokens(ctx context.Context, accountID uuid.UUID) error
}

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).Preload("Role").First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).Preload("Role").
		Where("email = ?", strings.ToLower(email)).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	var a models.Account
	if err := r.db.WithContext(ctx).Preload("Role").
		Where("phone = ?", phone).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *accountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Omit("Role").Save(account).Error
}

func (r *accountRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(fields).Error
}

func (r *accountRepository) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, int64, error) {
	var (
		accounts []models.Account
		total    int64
	)
	page, limit := models.NormalizePage(filter.Page, filter.Limit)

	query := r.db.WithContext(ctx).Model(&models.Account{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ? OR phone LIKE ?", like, like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Role").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&accounts).Error
	return accounts, total, err
}

func (r *accountRepository) CountByRole(ctx context.Context, roleID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Account{}).Where("role_id = ?", roleID).Count(&n).Error
	return n, err
}

func (r *accountRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *accountRepository) FindRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := r.db.WithContext(ctx).First(&t, "token_id = ?", tokenID).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// RevokeRefreshToken reports whether a live token was revoked by this call.
func (r *accountRepository) RevokeRefreshToken(ctx context.Context, tokenID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_id = ? AND revoked = ? AND expires_at > ?", tokenID, false, time.Now()).
		Update("revoked", true)
	return res.RowsAffected == 1, res.Error
}

func (r *accountRepository) RevokeAllRefreshTokens(ctx context.Context, accountID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("account_id = ? AND revoked = ?", accountID, false).
		Update("revoked", true).Error
}
