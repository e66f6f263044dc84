package models

import (
	"time"

	"github.com/google/uuid"
)

type OtpPurpose string

const (
	OtpVerifyAccount OtpPurpose = "verify_account"
	OtpVerifyEmail   OtpPurpose = "verify_email"
	OtpVerifyPhone   OtpPurpose = "verify_phone"
	OtpResetPassword OtpPurpose = "reset_password"
	OtpLogin         OtpPurpose = "login"
)

type OtpChannel string

const (
	ChannelEmail OtpChannel = "email"
	ChannelSMS   OtpChannel = "sms"
)

// Other returns the fallback channel.
func (c OtpChannel) Other() OtpChannel {
	if c == ChannelEmail {
		return ChannelSMS
	}
	return ChannelEmail
}

// Otp stores only a hash of the code. UsedAt is set once, either on
// successful verification or when a newer code replaces it.
type Otp struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID  `gorm:"type:uuid;not null;index:idx_otps_account_purpose"`
	Purpose   OtpPurpose `gorm:"type:varchar(20);not null;index:idx_otps_account_purpose"`
	Channel   OtpChannel `gorm:"type:varchar(10);not null"`
	Target    string     `gorm:"not null"`
	CodeHash  string     `gorm:"not null"`
	Attempts  int        `gorm:"not null;default:0"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

type RequestOTPRequest struct {
	Identifier string     `json:"identifier" binding:"required"`
	Purpose    OtpPurpose `json:"purpose" binding:"required,oneof=verify_account reset_password login"`
	Channel    OtpChannel `json:"channel" binding:"omitempty,oneof=email sms"`
}

type VerifyOTPRequest struct {
	Identifier  string     `json:"identifier" binding:"required"`
	Purpose     OtpPurpose `json:"purpose" binding:"required,oneof=verify_account reset_password login"`
	Code        string     `json:"code" binding:"required,numeric,min=4,max=10"`
	NewPassword string     `json:"new_password"`
}

type ConfirmCodeRequest struct {
	Code string `json:"code" binding:"required,numeric,min=4,max=10"`
}

type ResetPasswordRequest struct {
	Identifier  string `json:"identifier" binding:"required"`
	Code        string `json:"code" binding:"required,numeric,min=4,max=10"`
	NewPassword string `json:"new_password" binding:"required"`
}

// OTPIssue reports how a code was delivered. Target is masked.
type OTPIssue struct {
	Channel   OtpChannel `json:"channel"`
	Target    string     `json:"target"`
	Fallback  bool       `json:"fallback"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// OTPResult is returned by a successful verification.
type OTPResult struct {
	Purpose  OtpPurpose `json:"purpose"`
	Verified bool       `json:"verified"`
	Tokens   *TokenPair `json:"tokens,omitempty"`
}
