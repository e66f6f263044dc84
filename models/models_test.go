package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	page, limit := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultLimit, limit)

	page, limit = NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxLimit, limit)
}

func TestNewListMeta(t *testing.T) {
	meta := NewListMeta(1, 10, 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasMore)

	meta = NewListMeta(3, 10, 25)
	assert.False(t, meta.HasMore)

	meta = NewListMeta(1, 10, 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasMore)
}

func TestOrderStatusTransitions(t *testing.T) {
	assert.True(t, OrderPending.CanTransitionTo(OrderPaid))
	assert.True(t, OrderPending.CanTransitionTo(OrderCanceled))
	assert.True(t, OrderShipped.CanTransitionTo(OrderDelivered))
	assert.False(t, OrderPaid.CanTransitionTo(OrderCanceled))
	assert.False(t, OrderDelivered.CanTransitionTo(OrderShipped))
	assert.False(t, OrderCanceled.CanTransitionTo(OrderPending))
}

func TestCampaignLiveAt(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)
	end := now.Add(time.Hour)

	c := &Campaign{IsActive: true, StartsAt: &start, EndsAt: &end}
	assert.True(t, c.LiveAt(now))
	assert.False(t, c.LiveAt(end))
	assert.False(t, c.LiveAt(start.Add(-time.Second)))

	c.IsActive = false
	assert.False(t, c.LiveAt(now))

	open := &Campaign{IsActive: true}
	assert.True(t, open.LiveAt(now))
}

func TestComponentRegistry(t *testing.T) {
	assert.True(t, ComponentCPU.Valid())
	assert.True(t, ComponentAccessory.Valid())
	assert.False(t, ComponentType("toaster").Valid())

	assert.False(t, ComponentAccessory.HasSpec())
	assert.Nil(t, NewComponentSpec(ComponentAccessory))

	spec := NewComponentSpec(ComponentGPU)
	assert.IsType(t, &GPUSpec{}, spec)
	assert.Equal(t, ComponentGPU, spec.Type())

	assert.Len(t, ComponentModels(), len(ComponentTypes())-1)
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.True(t, PaymentSucceeded.IsTerminal())
	assert.True(t, PaymentCanceled.IsTerminal())
	assert.False(t, PaymentFailed.IsTerminal())
	assert.False(t, PaymentRequiresPayment.IsTerminal())
}

func TestOtpChannelOther(t *testing.T) {
	assert.Equal(t, ChannelSMS, ChannelEmail.Other())
	assert.Equal(t, ChannelEmail, ChannelSMS.Other())
}
