package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/middleware"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

type ProductController struct {
	products services.ProductService
	perms    services.PermissionService
}

func NewProductController(products services.ProductService, perms services.PermissionService) *ProductController {
	return &ProductController{products: products, perms: perms}
}

// canSeeInactive reports whether the caller may see deactivated products.
// Anonymous callers never can.
func (pc *ProductController) canSeeInactive(c *gin.Context) (bool, error) {
	if _, ok := middleware.AccountID(c); !ok {
		return false, nil
	}
	ability, err := middleware.AbilityOf(c, pc.perms)
	if err != nil {
		return false, err
	}
	return ability.Can(services.ActionUpdate, services.SubjectProduct), nil
}

// List handles GET /products.
func (pc *ProductController) List(c *gin.Context) {
	var filter models.ProductFilter
	if !bindQuery(c, &filter) {
		return
	}
	if c.Query("include_inactive") == "true" {
		staff, err := pc.canSeeInactive(c)
		if err != nil {
			c.Error(err)
			return
		}
		filter.IncludeInactive = staff
	}

	page, err := pc.products.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Get handles GET /products/:id, where id may also be a slug.
func (pc *ProductController) Get(c *gin.Context) {
	staff, err := pc.canSeeInactive(c)
	if err != nil {
		c.Error(err)
		return
	}
	product, err := pc.products.Get(c.Request.Context(), c.Param("id"), staff)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Create handles POST /products.
func (pc *ProductController) Create(c *gin.Context) {
	var req models.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := pc.products.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// Update handles PUT /products/:id.
func (pc *ProductController) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := pc.products.Update(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// AdjustStock handles POST /products/:id/stock.
func (pc *ProductController) AdjustStock(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.AdjustStockRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := pc.products.AdjustStock(c.Request.Context(), id, req.Delta)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Delete handles DELETE /products/:id.
func (pc *ProductController) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := pc.products.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
