package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/services"
)

// AccountController serves the signed-in caller's own account.
type AccountController struct {
	accounts services.AccountService
}

func NewAccountController(accounts services.AccountService) *AccountController {
	return &AccountController{accounts: accounts}
}

func (ac *AccountController) Me(c *gin.Context) {
	id, ok := currentAccount(c)
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

func (ac *AccountController) UpdateProfile(c *gin.Context) {
	id, ok := currentAccount(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := ac.accounts.UpdateProfile(c.Request.Context(), id, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (ac *AccountController) ChangePassword(c *gin.Context) {
	id, ok := currentAccount(c)
	if !ok {
		return
	}
	var req models.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.accounts.ChangePassword(c.Request.Context(), id, req); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// RequestVerification returns a handler that sends a code to the caller's
// email or phone.
func (ac *AccountController) RequestVerification(channel models.OtpChannel) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentAccount(c)
		if !ok {
			return
		}
		issue, err := ac.accounts.RequestContactVerification(c.Request.Context(), id, channel)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusAccepted, issue)
	}
}

// ConfirmVerification returns a handler that checks a code sent by
// RequestVerification.
func (ac *AccountController) ConfirmVerification(channel models.OtpChannel) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := currentAccount(c)
		if !ok {
			return
		}
		var req models.ConfirmCodeRequest
		if !bindJSON(c, &req) {
			return
		}
		account, err := ac.accounts.ConfirmContact(c.Request.Context(), id, channel, req.Code)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}
