package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

const IdempotencyHeader = "Idempotency-Key"

type CartController struct {
	carts services.CartService
}

func NewCartController(carts services.CartService) *CartController {
	return &CartController{carts: carts}
}

// GetCart returns the caller's cart.
func (cc *CartController) GetCart(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	view, err := cc.carts.Get(c.Request.Context(), accountID)
	respondCart(c, view, err)
}

// AddItem adds a product, or more of it when it is already in the cart.
// quantity defaults to 1.
func (cc *CartController) AddItem(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	var req models.AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	view, err := cc.carts.Add(c.Request.Context(), accountID, req.ProductID, qty, c.GetHeader(IdempotencyHeader))
	respondCart(c, view, err)
}

func (cc *CartController) Increase(c *gin.Context) {
	cc.itemOp(c, cc.carts.Increase)
}

func (cc *CartController) Decrease(c *gin.Context) {
	cc.itemOp(c, cc.carts.Decrease)
}

func (cc *CartController) RemoveItem(c *gin.Context) {
	cc.itemOp(c, cc.carts.Remove)
}

// SetQuantity handles PUT /cart/items/:productId. Zero removes the item.
func (cc *CartController) SetQuantity(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	var req models.SetCartQuantityRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := cc.carts.SetQuantity(c.Request.Context(), accountID, productID, *req.Quantity)
	respondCart(c, view, err)
}

// Clear empties the cart. It is safe to repeat.
func (cc *CartController) Clear(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	view, err := cc.carts.Clear(c.Request.Context(), accountID)
	respondCart(c, view, err)
}

// Merge folds a guest cart into the caller's cart.
func (cc *CartController) Merge(c *gin.Context) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	var req models.MergeCartRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := cc.carts.Merge(c.Request.Context(), accountID, req.Items)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (cc *CartController) itemOp(c *gin.Context, op func(ctx context.Context, accountID, productID uuid.UUID) (*models.CartView, error)) {
	accountID, ok := currentAccount(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	view, err := op(c.Request.Context(), accountID, productID)
	respondCart(c, view, err)
}

func respondCart(c *gin.Context, view *models.CartView, err error) {
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}
