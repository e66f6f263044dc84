package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CampaignKind string

const (
	CampaignBanner     CampaignKind = "banner"
	CampaignPromotion  CampaignKind = "promotion"
	CampaignNewsletter CampaignKind = "newsletter"
)

// Campaign is a marketing placement, optionally carrying a discount code.
type Campaign struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title           string         `gorm:"not null" json:"title"`
	Subtitle        string         `json:"subtitle,omitempty"`
	Kind            CampaignKind   `gorm:"type:varchar(20);not null;index" json:"kind"`
	ImageURL        string         `json:"image_url,omitempty"`
	LinkURL         string         `json:"link_url,omitempty"`
	Position        int            `gorm:"not null;default:0" json:"position"`
	IsActive        bool           `gorm:"not null;default:true" json:"is_active"`
	StartsAt        *time.Time     `json:"starts_at,omitempty"`
	EndsAt          *time.Time     `json:"ends_at,omitempty"`
	DiscountCode    *string        `gorm:"uniqueIndex" json:"discount_code,omitempty"`
	DiscountPercent int            `gorm:"not null;default:0" json:"discount_percent,omitempty"`
	MinOrderAmount  int64          `gorm:"not null;default:0" json:"min_order_amount,omitempty"`
	MaxRedemptions  int            `gorm:"not null;default:0" json:"max_redemptions,omitempty"`
	Redemptions     int            `gorm:"not null;default:0" json:"redemptions"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// LiveAt reports whether the campaign is active and t falls in its window.
func (c *Campaign) LiveAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && t.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && !t.Before(*c.EndsAt) {
		return false
	}
	return true
}

type Subscriber struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	SubscribedAt   time.Time  `json:"subscribed_at"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
}

type CampaignRequest struct {
	Title           string       `json:"title" binding:"required,max=200"`
	Subtitle        string       `json:"subtitle" binding:"max=300"`
	Kind            CampaignKind `json:"kind" binding:"required,oneof=banner promotion newsletter"`
	ImageURL        string       `json:"image_url" binding:"omitempty,url"`
	LinkURL         string       `json:"link_url" binding:"omitempty,max=500"`
	Position        int          `json:"position"`
	IsActive        *bool        `json:"is_active"`
	StartsAt        *time.Time   `json:"starts_at"`
	EndsAt          *time.Time   `json:"ends_at"`
	DiscountCode    string       `json:"discount_code" binding:"omitempty,alphanum,min=3,max=32"`
	DiscountPercent int          `json:"discount_percent" binding:"omitempty,min=1,max=90"`
	MinOrderAmount  int64        `json:"min_order_amount" binding:"gte=0"`
	MaxRedemptions  int          `json:"max_redemptions" binding:"gte=0"`
}

type ValidateDiscountRequest struct {
	Code     string `json:"code" binding:"required"`
	Subtotal int64  `json:"subtotal" binding:"gte=0"`
}

type DiscountQuote struct {
	Code     string `json:"code"`
	Percent  int    `json:"percent"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

type SubscribeRequest struct {
	Email string `json:"email" binding:"required,email"`
}
