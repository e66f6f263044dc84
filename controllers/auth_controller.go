package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

// AuthController serves the public authentication endpoints.
type AuthController struct {
	accounts services.AccountService
}

func NewAuthController(accounts services.AccountService) *AuthController {
	return &AuthController{accounts: accounts}
}

// Register handles POST /auth/register.
func (ac *AuthController) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := ac.accounts.Register(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (ac *AuthController) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := ac.accounts.Login(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh.
func (ac *AuthController) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := ac.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout handles POST /auth/logout.
func (ac *AuthController) Logout(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequestOTP handles POST /auth/otp/request. Known and unknown identifiers
// get the same response.
func (ac *AuthController) RequestOTP(c *gin.Context) {
	var req models.RequestOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := ac.accounts.RequestOTP(c.Request.Context(), req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "If the account exists, a verification code has been sent"})
}

// VerifyOTP handles POST /auth/otp/verify.
func (ac *AuthController) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := ac.accounts.VerifyOTP(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ResetPassword handles POST /auth/password/reset.
func (ac *AuthController) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.accounts.ResetPassword(c.Request.Context(), req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
