package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Slug          string         `gorm:"uniqueIndex;not null" json:"slug"`
	SKU           string         `gorm:"uniqueIndex;not null" json:"sku"`
	Brand         string         `gorm:"index" json:"brand"`
	Description   string         `gorm:"type:text" json:"description"`
	Category      string         `gorm:"index" json:"category"`
	Price         int64          `gorm:"not null" json:"price"`
	Stock         int            `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	ComponentType ComponentType  `gorm:"type:varchar(20);index;not null" json:"component_type"`
	IsActive      bool           `gorm:"not null;default:true" json:"is_active"`
	Images        []Image        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Spec          ComponentSpec  `gorm:"-" json:"specs,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// PrimaryImageURL returns the primary image URL or "".
func (p *Product) PrimaryImageURL() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	return ""
}

type ProductRequest struct {
	Name          string          `json:"name" binding:"required,max=200"`
	Slug          string          `json:"slug" binding:"omitempty,max=200"`
	SKU           string          `json:"sku" binding:"required,max=64"`
	Brand         string          `json:"brand" binding:"max=100"`
	Description   string          `json:"description"`
	Category      string          `json:"category" binding:"max=100"`
	Price         int64           `json:"price" binding:"required,gt=0"`
	Stock         int             `json:"stock" binding:"gte=0"`
	ComponentType ComponentType   `json:"component_type" binding:"required"`
	Specs         json.RawMessage `json:"specs"`
	IsActive      *bool           `json:"is_active"`
}

type UpdateProductRequest struct {
	Name          *string         `json:"name" binding:"omitempty,max=200"`
	Slug          *string         `json:"slug" binding:"omitempty,max=200"`
	SKU           *string         `json:"sku" binding:"omitempty,max=64"`
	Brand         *string         `json:"brand" binding:"omitempty,max=100"`
	Description   *string         `json:"description"`
	Category      *string         `json:"category" binding:"omitempty,max=100"`
	Price         *int64          `json:"price" binding:"omitempty,gt=0"`
	ComponentType *ComponentType  `json:"component_type"`
	Specs         json.RawMessage `json:"specs"`
	IsActive      *bool           `json:"is_active"`
}

type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
	SortName      = "name"
)

type ProductFilter struct {
	Page            int           `form:"page" json:"page" validate:"omitempty,min=1"`
	PerPage         int           `form:"per_page" json:"per_page" validate:"omitempty,min=1,max=100"`
	ComponentType   ComponentType `form:"component_type" json:"component_type,omitempty"`
	Brand           string        `form:"brand" json:"brand,omitempty" validate:"max=100"`
	Category        string        `form:"category" json:"category,omitempty" validate:"max=100"`
	MinPrice        *int64        `form:"min_price" json:"min_price,omitempty" validate:"omitempty,gte=0"`
	MaxPrice        *int64        `form:"max_price" json:"max_price,omitempty" validate:"omitempty,gte=0"`
	Query           string        `form:"q" json:"q,omitempty" validate:"max=100"`
	InStock         bool          `form:"in_stock" json:"in_stock,omitempty"`
	Sort            string        `form:"sort" json:"sort,omitempty" validate:"omitempty,oneof=price_asc price_desc newest name"`
	IncludeInactive bool          `form:"-" json:"include_inactive,omitempty"`
}
