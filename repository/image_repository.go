package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"gorm.io/gorm"
)

type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Image, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Image, error)
	CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
	NextPosition(ctx context.Context, productID uuid.UUID) (int, error)
	SetPrimary(ctx context.Context, productID, imageID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type imageRepository struct {
	db *gorm.DB
}

func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	var img models.Image
	if err := r.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *imageRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Image, error) {
	var images []models.Image
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position ASC, created_at ASC").
		Find(&images).Error
	return images, err
}

func (r *imageRepository) CountByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Image{}).Where("product_id = ?", productID).Count(&n).Error
	return n, err
}

func (r *imageRepository) NextPosition(ctx context.Context, productID uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.Image{}).
		Where("product_id = ?", productID).
		Select("MAX(position)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max + 1, nil
}

// SetPrimary clears the flag on the product's other images and sets it on
// imageID. Call inside a transaction.
func (r *imageRepository) SetPrimary(ctx context.Context, productID, imageID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Image{}).
		Where("product_id = ? AND id <> ? AND is_primary = ?", productID, imageID, true).
		Update("is_primary", false).Error; err != nil {
		return err
	}
	return db.Model(&models.Image{}).
		Where("id = ?", imageID).
		Update("is_primary", true).Error
}

func (r *imageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Image{}, "id = ?", id).Error
}
