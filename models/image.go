package models

import (
	"time"

	"github.com/google/uuid"
)

// AllowedImageTypes maps accepted content types to file extensions.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Image struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	StorageKey  string    `gorm:"uniqueIndex;not null" json:"key"`
	URL         string    `gorm:"not null" json:"url"`
	ContentType string    `gorm:"type:varchar(50);not null" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Position    int       `gorm:"not null;default:0" json:"position"`
	IsPrimary   bool      `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt   time.Time `json:"created_at"`
}

type PresignImageRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"content_type" binding:"required"`
}

type PresignImageResponse struct {
	UploadURL string            `json:"upload_url"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type RegisterImageRequest struct {
	Key         string `json:"key" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"gte=0"`
}
