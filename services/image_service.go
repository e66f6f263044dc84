package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	aws_pkg "github.com/yashrajoria/storefront-api/pkg/aws"
	"github.com/yashrajoria/storefront-api/repository"
	"go.uber.org/zap"
)

type ImageService interface {
	PresignUpload(ctx context.Context, productID uuid.UUID, req models.PresignImageRequest) (*models.PresignImageResponse, error)
	Register(ctx context.Context, productID uuid.UUID, req models.RegisterImageRequest) (*models.Image, error)
	Upload(ctx context.Context, productID uuid.UUID, contentType string, size int64, body io.Reader) (*models.Image, error)
	List(ctx context.Context, productID uuid.UUID) ([]models.Image, error)
	SetPrimary(ctx context.Context, imageID uuid.UUID) (*models.Image, error)
	Delete(ctx context.Context, imageID uuid.UUID) error
}

type imageService struct {
	store     repository.Store
	objects   aws_pkg.ObjectStore
	products  ProductCacheInvalidator
	uploadTTL time.Duration
	maxBytes  int64
	log       *zap.Logger
}

// ProductCacheInvalidator drops cached product lists after image changes
// so primary image URLs stay current.
type ProductCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

func NewImageService(store repository.Store, objects aws_pkg.ObjectStore, products ProductCacheInvalidator, uploadTTL time.Duration, maxBytes int64, log *zap.Logger) ImageService {
	return &imageService{
		store:     store,
		objects:   objects,
		products:  products,
		uploadTTL: uploadTTL,
		maxBytes:  maxBytes,
		log:       log,
	}
}

func keyPrefix(productID uuid.UUID) string {
	return "products/" + productID.String() + "/"
}

func (s *imageService) checkUpload(contentType string, size int64) (string, error) {
	ext, ok := models.AllowedImageTypes[strings.ToLower(contentType)]
	if !ok {
		return "", invalidField("content_type", "oneof")
	}
	if size > s.maxBytes {
		return "", apperrors.WithDetails(apperrors.ErrValidation, map[string]string{
			"size_bytes": fmt.Sprintf("max %d", s.maxBytes),
		})
	}
	return ext, nil
}

func (s *imageService) ensureProduct(ctx context.Context, productID uuid.UUID) error {
	if _, err := s.store.Products().FindByID(ctx, productID); err != nil {
		return notFoundAs(err, apperrors.ErrProductNotFound)
	}
	return nil
}

func (s *imageService) PresignUpload(ctx context.Context, productID uuid.UUID, req models.PresignImageRequest) (*models.PresignImageResponse, error) {
	ext, err := s.checkUpload(req.ContentType, 0)
	if err != nil {
		return nil, err
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}

	key := keyPrefix(productID) + uuid.NewString() + ext
	url, headers, err := s.objects.PresignPut(ctx, key, req.ContentType, s.uploadTTL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	return &models.PresignImageResponse{
		UploadURL: url,
		Key:       key,
		Headers:   headers,
		ExpiresAt: time.Now().Add(s.uploadTTL),
	}, nil
}

func (s *imageService) Register(ctx context.Context, productID uuid.UUID, req models.RegisterImageRequest) (*models.Image, error) {
	if _, err := s.checkUpload(req.ContentType, req.SizeBytes); err != nil {
		return nil, err
	}
	key := path.Clean(req.Key)
	if !strings.HasPrefix(key, keyPrefix(productID)) {
		return nil, invalidField("key", "prefix")
	}
	return s.record(ctx, productID, key, req.ContentType, req.SizeBytes)
}

func (s *imageService) Upload(ctx context.Context, productID uuid.UUID, contentType string, size int64, body io.Reader) (*models.Image, error) {
	ext, err := s.checkUpload(contentType, size)
	if err != nil {
		return nil, err
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}

	// size comes from the multipart header; the stored length is what counts.
	key := keyPrefix(productID) + uuid.NewString() + ext
	stored, err := s.objects.Put(ctx, key, contentType, io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrServiceUnavailable, err)
	}
	if _, err := s.checkUpload(contentType, stored); err != nil {
		s.deleteObject(ctx, key)
		return nil, err
	}

	img, err := s.record(ctx, productID, key, contentType, stored)
	if err != nil {
		s.deleteObject(ctx, key)
		return nil, err
	}
	return img, nil
}

// record inserts the image row. The first image of a product is primary.
func (s *imageService) record(ctx context.Context, productID uuid.UUID, key, contentType string, size int64) (*models.Image, error) {
	img := &models.Image{
		ProductID:   productID,
		StorageKey:  key,
		URL:         s.objects.PublicURL(key),
		ContentType: strings.ToLower(contentType),
		SizeBytes:   size,
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().FindByIDForUpdate(ctx, productID); err != nil {
			return notFoundAs(err, apperrors.ErrProductNotFound)
		}
		count, err := tx.Images().CountByProduct(ctx, productID)
		if err != nil {
			return err
		}
		pos, err := tx.Images().NextPosition(ctx, productID)
		if err != nil {
			return err
		}
		img.Position = pos
		img.IsPrimary = count == 0
		return tx.Images().Create(ctx, img)
	})
	if err != nil {
		return nil, dbError(err)
	}
	s.invalidateProducts(ctx)
	return img, nil
}

func (s *imageService) List(ctx context.Context, productID uuid.UUID) ([]models.Image, error) {
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	images, err := s.store.Images().ListByProduct(ctx, productID)
	if err != nil {
		return nil, dbError(err)
	}
	if images == nil {
		images = []models.Image{}
	}
	return images, nil
}

func (s *imageService) SetPrimary(ctx context.Context, imageID uuid.UUID) (*models.Image, error) {
	img, err := s.store.Images().FindByID(ctx, imageID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.WithMessage(apperrors.ErrNotFound, "Image not found"))
	}
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().FindByIDForUpdate(ctx, img.ProductID); err != nil {
			return err
		}
		return tx.Images().SetPrimary(ctx, img.ProductID, img.ID)
	})
	if err != nil {
		return nil, dbError(err)
	}
	img.IsPrimary = true
	s.invalidateProducts(ctx)
	return img, nil
}

func (s *imageService) Delete(ctx context.Context, imageID uuid.UUID) error {
	img, err := s.store.Images().FindByID(ctx, imageID)
	if err != nil {
		return notFoundAs(err, apperrors.WithMessage(apperrors.ErrNotFound, "Image not found"))
	}

	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Products().FindByIDForUpdate(ctx, img.ProductID); err != nil {
			return err
		}
		if err := tx.Images().Delete(ctx, img.ID); err != nil {
			return err
		}
		if !img.IsPrimary {
			return nil
		}
		rest, err := tx.Images().ListByProduct(ctx, img.ProductID)
		if err != nil || len(rest) == 0 {
			return err
		}
		return tx.Images().SetPrimary(ctx, img.ProductID, rest[0].ID)
	})
	if err != nil {
		return dbError(err)
	}

	s.deleteObject(ctx, img.StorageKey)
	s.invalidateProducts(ctx)
	return nil
}

func (s *imageService) deleteObject(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete image object", zap.String("key", key), zap.Error(err))
	}
}

func (s *imageService) invalidateProducts(ctx context.Context) {
	if s.products == nil {
		return
	}
	if err := s.products.Invalidate(ctx); err != nil {
		s.log.Warn("failed to invalidate product cache", zap.Error(err))
	}
}
