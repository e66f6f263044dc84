package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderPaid       OrderStatus = "paid"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCanceled   OrderStatus = "canceled"
	OrderRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderPaid, OrderCanceled},
	OrderPaid:       {OrderProcessing, OrderRefunded},
	OrderProcessing: {OrderShipped},
	OrderShipped:    {OrderDelivered},
}

// CanTransitionTo reports whether the status machine allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ShippingAddress struct {
	Name       string `json:"name" binding:"required,max=100"`
	Line1      string `json:"line1" binding:"required,max=200"`
	Line2      string `json:"line2" binding:"max=200"`
	City       string `json:"city" binding:"required,max=100"`
	State      string `json:"state" binding:"max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"required,len=2"`
	Phone      string `json:"phone" binding:"omitempty,e164"`
}

type Order struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber  string          `gorm:"uniqueIndex;not null" json:"order_number"`
	AccountID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"account_id"`
	Status       OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal     int64           `gorm:"not null" json:"subtotal"`
	Discount     int64           `gorm:"not null;default:0" json:"discount"`
	Total        int64           `gorm:"not null" json:"total"`
	Currency     string          `gorm:"type:varchar(10);not null" json:"currency"`
	DiscountCode string          `json:"discount_code,omitempty"`
	Shipping     ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping"`
	PaidAt       *time.Time      `json:"paid_at,omitempty"`
	CanceledAt   *time.Time      `json:"canceled_at,omitempty"`
	Items        []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Name      string    `gorm:"not null" json:"name"`
	SKU       string    `json:"sku"`
	UnitPrice int64     `gorm:"not null" json:"unit_price"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	LineTotal int64     `gorm:"not null" json:"line_total"`
}

type CheckoutRequest struct {
	Shipping     ShippingAddress `json:"shipping"`
	DiscountCode string          `json:"discount_code" binding:"max=50"`
}

type CheckoutResponse struct {
	Order   *Order   `json:"order"`
	Payment *Payment `json:"payment,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required,oneof=pending paid processing shipped delivered canceled refunded"`
}

type OrderFilter struct {
	Page      int         `form:"page"`
	Limit     int         `form:"limit"`
	Status    OrderStatus `form:"status"`
	AccountID *uuid.UUID  `form:"-"`
}

// OrderEvent is published to SNS on order lifecycle changes.
type OrderEvent struct {
	Type        string      `json:"type"`
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	AccountID   uuid.UUID   `json:"account_id"`
	Status      OrderStatus `json:"status"`
	Total       int64       `json:"total"`
	Currency    string      `json:"currency"`
	Timestamp   time.Time   `json:"timestamp"`
}

const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderCanceled = "order.canceled"
	EventOrderStatus   = "order.status_changed"

	EventPaymentRequiresRefund = "payment.requires_refund"
)
