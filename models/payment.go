package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentRequiresPayment PaymentStatus = "requires_payment"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentFailed          PaymentStatus = "failed"
	PaymentCanceled        PaymentStatus = "canceled"
	PaymentRefunded        PaymentStatus = "refunded"
)

// IsTerminal reports whether webhooks may no longer change the status.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentSucceeded, PaymentCanceled, PaymentRefunded:
		return true
	}
	return false
}

type Payment struct {
	ID                    uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID               uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	AccountID             uuid.UUID     `gorm:"type:uuid;not null;index" json:"account_id"`
	Amount                int64         `gorm:"not null" json:"amount"`
	Currency              string        `gorm:"type:varchar(10);not null" json:"currency"`
	Status                PaymentStatus `gorm:"type:varchar(20);not null" json:"status"`
	StripePaymentIntentID *string       `gorm:"uniqueIndex" json:"stripe_payment_intent_id,omitempty"`
	ClientSecret          string        `json:"client_secret,omitempty"`
	FailureReason         string        `json:"failure_reason,omitempty"`
	// RequiresRefund marks money captured for an order that was already
	// canceled. Staff refund it by hand.
	RequiresRefund     bool       `gorm:"not null;default:false;index" json:"requires_refund"`
	StripeEventPayload *string    `gorm:"type:jsonb" json:"-"`
	SucceededAt        *time.Time `json:"succeeded_at,omitempty"`
	FailedAt           *time.Time `json:"failed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
