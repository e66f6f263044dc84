package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

// AdminController serves account and role management.
type AdminController struct {
	accounts services.AccountService
	perms    services.PermissionService
}

func NewAdminController(accounts services.AccountService, perms services.PermissionService) *AdminController {
	return &AdminController{accounts: accounts, perms: perms}
}

// ListAccounts handles GET /admin/accounts?q=&page=&limit=.
func (ac *AdminController) ListAccounts(c *gin.Context) {
	page, limit := pageParams(c)
	filter := models.AccountFilter{Page: page, Limit: limit, Query: c.Query("q")}
	accounts, total, err := ac.accounts.ListAccounts(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listOf(accounts, page, limit, total))
}

func (ac *AdminController) GetAccount(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	account, err := ac.accounts.Me(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// SetRole handles PUT /admin/accounts/:id/role.
func (ac *AdminController) SetRole(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.SetRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := ac.accounts.SetRole(c.Request.Context(), id, req.Role)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// SetActive handles PUT /admin/accounts/:id/active.
func (ac *AdminController) SetActive(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.SetActiveRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := ac.accounts.SetActive(c.Request.Context(), id, *req.Active)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (ac *AdminController) ListRoles(c *gin.Context) {
	roles, err := ac.perms.ListRoles(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	if roles == nil {
		roles = []models.Role{}
	}
	c.JSON(http.StatusOK, gin.H{"data": roles})
}

func (ac *AdminController) CreateRole(c *gin.Context) {
	var req models.RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := ac.perms.CreateRole(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

func (ac *AdminController) UpdateRole(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req models.RoleRequest
	if !bindJSON(c, &req) {
		return
	}
	role, err := ac.perms.UpdateRole(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (ac *AdminController) DeleteRole(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := ac.perms.DeleteRole(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
