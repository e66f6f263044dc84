package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindBySlug(ctx context.Context, slug string) (*models.Product, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)

	// AdjustStock applies delta and reports false when the result would be
	// negative (nothing is written in that case).
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error)

	LoadSpec(ctx context.Context, product *models.Product) error
	SaveSpec(ctx context.Context, spec models.ComponentSpec) error
	DeleteSpec(ctx context.Context, productID uuid.UUID, t models.ComponentType) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Images").Create(product).Error
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("slug = ?", slug).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := forUpdate(r.db.WithContext(ctx)).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Images", "is_primary = ?", true).
		Where("id IN ?", ids).
		Find(&products).Error
	return products, err
}

func (r *productRepository) FindAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	var (
		products []models.Product
		total    int64
	)
	page, limit := models.NormalizePage(filter.Page, filter.PerPage)

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if !filter.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if filter.ComponentType != "" {
		query = query.Where("component_type = ?", filter.ComponentType)
	}
	if filter.Brand != "" {
		query = query.Where("LOWER(brand) = ?", strings.ToLower(filter.Brand))
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(filter.Category))
	}
	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = query.Where("name ILIKE ?", "%"+q+"%")
	}
	if filter.InStock {
		query = query.Where("stock > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Images", "is_primary = ?", true).
		Order(productOrder(filter.Sort)).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	return products, total, err
}

func productOrder(sort string) string {
	switch sort {
	case models.SortPriceAsc:
		return "price ASC, id"
	case models.SortPriceDesc:
		return "price DESC, id"
	case models.SortName:
		return "name ASC, id"
	default:
		return "created_at DESC, id"
	}
}

func (r *productRepository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Images").Save(product).Error
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id).Error
}

func (r *productRepository) SlugExists(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("slug = ? AND id <> ?", slug, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	return res.RowsAffected == 1, res.Error
}

func (r *productRepository) LoadSpec(ctx context.Context, product *models.Product) error {
	spec := models.NewComponentSpec(product.ComponentType)
	if spec == nil {
		product.Spec = nil
		return nil
	}
	err := r.db.WithContext(ctx).Where("product_id = ?", product.ID).First(spec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		product.Spec = nil
		return nil
	}
	if err != nil {
		return err
	}
	product.Spec = spec
	return nil
}

func (r *productRepository) SaveSpec(ctx context.Context, spec models.ComponentSpec) error {
	return r.db.WithContext(ctx).Save(spec).Error
}

func (r *productRepository) DeleteSpec(ctx context.Context, productID uuid.UUID, t models.ComponentType) error {
	spec := models.NewComponentSpec(t)
	if spec == nil {
		return nil
	}
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(spec).Error
}
