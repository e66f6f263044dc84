package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/cache"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
)

type ProductService interface {
	Create(ctx context.Context, req models.ProductRequest) (*models.Product, error)
	// Get accepts an id or a slug. Inactive products are only returned when
	// includeInactive is set.
	Get(ctx context.Context, idOrSlug string, includeInactive bool) (*models.Product, error)
	List(ctx context.Context, filter models.ProductFilter) (*cache.ProductPage, error)
	Update(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) (*models.Product, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	store    repository.Store
	cache    cache.ProductCache
	validate *validator.Validate
	log      *zap.Logger
}

func NewProductService(store repository.Store, productCache cache.ProductCache, log *zap.Logger) ProductService {
	return &productService{
		store:    store,
		cache:    productCache,
		validate: validator.New(),
		log:      log,
	}
}

func (s *productService) Create(ctx context.Context, req models.ProductRequest) (*models.Product, error) {
	if !req.ComponentType.Valid() {
		return nil, invalidField("component_type", "oneof")
	}
	spec, err := s.decodeSpec(req.ComponentType, req.Specs, true)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          strings.TrimSpace(req.Name),
		SKU:           strings.TrimSpace(req.SKU),
		Brand:         req.Brand,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		Stock:         req.Stock,
		ComponentType: req.ComponentType,
		IsActive:      req.IsActive == nil || *req.IsActive,
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		slug, err := s.uniqueSlug(ctx, tx, req.Slug, product.Name, uuid.Nil)
		if err != nil {
			return err
		}
		product.Slug = slug
		if err := tx.Products().Create(ctx, product); err != nil {
			return err
		}
		if spec != nil {
			spec.SetProductID(product.ID)
			if err := tx.Products().SaveSpec(ctx, spec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	product.Spec = spec
	s.invalidate(ctx)
	s.log.Info("product created", zap.String("product_id", product.ID.String()), zap.String("sku", product.SKU))
	return product, nil
}

func (s *productService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*models.Product, error) {
	var (
		product *models.Product
		err     error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.store.Products().FindByID(ctx, id)
	} else {
		product, err = s.store.Products().FindBySlug(ctx, strings.ToLower(idOrSlug))
	}
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrProductNotFound)
	}
	if !product.IsActive && !includeInactive {
		return nil, apperrors.ErrProductNotFound
	}
	if err := s.store.Products().LoadSpec(ctx, product); err != nil {
		return nil, dbError(err)
	}
	return product, nil
}

func (s *productService) List(ctx context.Context, filter models.ProductFilter) (*cache.ProductPage, error) {
	if err := s.validate.Struct(filter); err != nil {
		return nil, err
	}
	if filter.ComponentType != "" && !filter.ComponentType.Valid() {
		return nil, invalidField("component_type", "oneof")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, invalidField("min_price", "ltefield")
	}
	filter.Page, filter.PerPage = models.NormalizePage(filter.Page, filter.PerPage)

	var version int64
	if s.cache != nil {
		page, v, ok := s.cache.GetList(ctx, filter)
		if ok {
			return page, nil
		}
		version = v
	}

	products, total, err := s.store.Products().FindAll(ctx, filter)
	if err != nil {
		return nil, dbError(err)
	}
	if products == nil {
		products = []models.Product{}
	}
	page := &cache.ProductPage{
		Data: products,
		Meta: models.NewListMeta(filter.Page, filter.PerPage, total),
	}

	if s.cache != nil {
		s.cache.SetListAsync(version, filter, page)
	}
	return page, nil
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, req models.UpdateProductRequest) (*models.Product, error) {
	var product *models.Product
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		product, err = tx.Products().FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFoundAs(err, apperrors.ErrProductNotFound)
		}

		oldType := product.ComponentType
		if req.ComponentType != nil {
			if !req.ComponentType.Valid() {
				return invalidField("component_type", "oneof")
			}
			product.ComponentType = *req.ComponentType
		}
		typeChanged := product.ComponentType != oldType

		var spec models.ComponentSpec
		if typeChanged || len(req.Specs) > 0 {
			spec, err = s.decodeSpec(product.ComponentType, req.Specs, typeChanged)
			if err != nil {
				return err
			}
		}

		if req.Name != nil {
			product.Name = strings.TrimSpace(*req.Name)
		}
		if req.Slug != nil {
			slug, err := s.uniqueSlug(ctx, tx, *req.Slug, product.Name, product.ID)
			if err != nil {
				return err
			}
			product.Slug = slug
		}
		if req.SKU != nil {
			product.SKU = strings.TrimSpace(*req.SKU)
		}
		if req.Brand != nil {
			product.Brand = *req.Brand
		}
		if req.Description != nil {
			product.Description = *req.Description
		}
		if req.Category != nil {
			product.Category = *req.Category
		}
		if req.Price != nil {
			product.Price = *req.Price
		}
		if req.IsActive != nil {
			product.IsActive = *req.IsActive
		}

		if err := tx.Products().Update(ctx, product); err != nil {
			return err
		}
		if typeChanged {
			if err := tx.Products().DeleteSpec(ctx, product.ID, oldType); err != nil {
				return err
			}
		}
		if spec != nil {
			spec.SetProductID(product.ID)
			if err := tx.Products().SaveSpec(ctx, spec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}

	s.invalidate(ctx)
	return s.Get(ctx, id.String(), true)
}

func (s *productService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, invalidField("delta", "ne")
	}
	ok, err := s.store.Products().AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, dbError(err)
	}
	if !ok {
		if _, err := s.store.Products().FindByID(ctx, id); err != nil {
			return nil, notFoundAs(err, apperrors.ErrProductNotFound)
		}
		return nil, apperrors.ErrInsufficientStock
	}
	s.invalidate(ctx)
	return s.Get(ctx, id.String(), true)
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Products().FindByID(ctx, id); err != nil {
		return notFoundAs(err, apperrors.ErrProductNotFound)
	}
	if err := s.store.Products().Delete(ctx, id); err != nil {
		return dbError(err)
	}
	s.invalidate(ctx)
	s.log.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

// decodeSpec decodes raw into the spec type registered for t. Types without
// a spec table ignore raw.
func (s *productService) decodeSpec(t models.ComponentType, raw json.RawMessage, required bool) (models.ComponentSpec, error) {
	spec := models.NewComponentSpec(t)
	if spec == nil {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if required {
			return nil, invalidField("specs", "required")
		}
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(spec); err != nil {
		return nil, apperrors.WithDetails(apperrors.ErrValidation, map[string]string{"specs": err.Error()})
	}
	if err := s.validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields["specs."+fe.Field()] = fe.Tag()
			}
			return nil, apperrors.WithDetails(apperrors.ErrValidation, fields)
		}
		return nil, err
	}
	return spec, nil
}

func (s *productService) uniqueSlug(ctx context.Context, store repository.Store, requested, name string, self uuid.UUID) (string, error) {
	base := Slugify(requested)
	if base == "" {
		base = Slugify(name)
	}
	if base == "" {
		return "", invalidField("slug", "required")
	}

	slug := base
	for i := 0; i < 5; i++ {
		exists, err := store.Products().SlugExists(ctx, slug, self)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = base + "-" + uuid.NewString()[:6]
	}
	return "", apperrors.WithMessage(apperrors.ErrConflict, "Could not allocate a unique slug")
}

func (s *productService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Error("failed to invalidate product cache", zap.Error(err))
	}
}

// Slugify lowercases s and joins runs of letters and digits with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func invalidField(field, tag string) error {
	return apperrors.WithDetails(apperrors.ErrValidation, map[string]string{field: tag})
}
