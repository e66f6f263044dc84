package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Account struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email           *string        `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone           *string        `gorm:"uniqueIndex" json:"phone,omitempty"`
	Name            string         `gorm:"not null" json:"name"`
	PasswordHash    string         `gorm:"not null" json:"-"`
	EmailVerifiedAt *time.Time     `json:"email_verified_at,omitempty"`
	PhoneVerifiedAt *time.Time     `json:"phone_verified_at,omitempty"`
	RoleID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"role_id"`
	Role            Role           `gorm:"foreignKey:RoleID" json:"role"`
	IsActive        bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// EmailAddress returns the email or "".
func (a *Account) EmailAddress() string {
	if a.Email == nil {
		return ""
	}
	return *a.Email
}

// PhoneNumber returns the phone or "".
func (a *Account) PhoneNumber() string {
	if a.Phone == nil {
		return ""
	}
	return *a.Phone
}

// IsVerified reports whether at least one contact channel is verified.
func (a *Account) IsVerified() bool {
	return a.EmailVerifiedAt != nil || a.PhoneVerifiedAt != nil
}

type RefreshToken struct {
	TokenID   string    `gorm:"primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;index"`
	Revoked   bool      `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

type RegisterRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	Phone    *string `json:"phone" binding:"omitempty,e164"`
	Name     string  `json:"name" binding:"required,min=1,max=100"`
	Password string  `json:"password" binding:"required"`
	Channel  string  `json:"channel" binding:"omitempty,oneof=email sms"`
}

type RegisterResponse struct {
	Account     *Account `json:"account"`
	OTPChannel  string   `json:"otp_channel,omitempty"`
	OTPDelivery string   `json:"otp_delivery"`
}

type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type UpdateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
	Phone *string `json:"phone" binding:"omitempty,e164"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type AccountFilter struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Query string `form:"q"`
}
