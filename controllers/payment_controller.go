package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/middleware"
	"github.com/yashrajoria/storefront-api/services"
)

const maxWebhookBytes = 65536

type PaymentController struct {
	payments services.PaymentService
	perms    services.PermissionService
}

func NewPaymentController(payments services.PaymentService, perms services.PermissionService) *PaymentController {
	return &PaymentController{payments: payments, perms: perms}
}

// GetForOrder handles GET /orders/:id/payment.
func (pc *PaymentController) GetForOrder(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ability, err := middleware.AbilityOf(c, pc.perms)
	if err != nil {
		c.Error(err)
		return
	}
	payment, err := pc.payments.GetForOrder(c.Request.Context(), orderID, accountID, ability)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// Retry handles POST /orders/:id/payment/retry.
func (pc *PaymentController) Retry(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	payment, err := pc.payments.Retry(c.Request.Context(), orderID, accountID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// Webhook handles POST /payments/webhook. The raw body is needed to verify
// the Stripe signature.
func (pc *PaymentController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.Error(apperrors.Wrap(apperrors.ErrBadRequest, err))
		return
	}
	if err := pc.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
