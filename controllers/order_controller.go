package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

type OrderController struct {
	orders services.OrderService
}

func NewOrderController(orders services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Checkout turns the caller's cart into an order.
func (oc *OrderController) Checkout(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	var req models.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := oc.orders.Checkout(c.Request.Context(), accountID, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListMine handles GET /orders.
func (oc *OrderController) ListMine(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	var filter models.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := oc.orders.ListMine(c.Request.Context(), accountID, filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetMine handles GET /orders/:id.
func (oc *OrderController) GetMine(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.GetMine(c.Request.Context(), accountID, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// Cancel handles POST /orders/:id/cancel.
func (oc *OrderController) Cancel(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.Cancel(c.Request.Context(), accountID, id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListAll handles GET /admin/orders. ?account= narrows to one customer.
func (oc *OrderController) ListAll(c *gin.Context) {
	var filter models.OrderFilter
	if !bindQuery(c, &filter) {
		return
	}
	if raw := c.Query("account"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.Error(apperrors.WithDetails(apperrors.ErrInvalidInput, map[string]string{"account": "must be a UUID"}))
			return
		}
		filter.AccountID = &id
	}
	resp, err := oc.orders.ListAll(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /admin/orders/:id.
func (oc *OrderController) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	order, err := oc.orders.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateStatus handles PUT /admin/orders/:id/status.
func (oc *OrderController) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := oc.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, order)
}
