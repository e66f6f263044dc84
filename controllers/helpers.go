package controllers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/middleware"
	"github.com/yashrajoria/storefront-api/models"
)

// bindJSON decodes the body into req. Validation failures keep their field
// details; anything else is reported as invalid input.
func bindJSON(c *gin.Context, req any) bool {
	return bindResult(c, c.ShouldBindJSON(req))
}

func bindQuery(c *gin.Context, req any) bool {
	return bindResult(c, c.ShouldBindQuery(req))
}

func bindResult(c *gin.Context, err error) bool {
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.Error(err)
	} else {
		c.Error(apperrors.Wrap(apperrors.ErrInvalidInput, err))
	}
	return false
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.Error(apperrors.WithDetails(apperrors.ErrInvalidInput, map[string]string{name: "must be a UUID"}))
		return uuid.Nil, false
	}
	return id, true
}

// currentAccount returns the authenticated caller or records Unauthorized.
func currentAccount(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.AccountID(c)
	if !ok {
		c.Error(apperrors.ErrUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return models.NormalizePage(page, limit)
}

func listOf[T any](items []T, page, limit int, total int64) models.ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return models.ListResponse[T]{Data: items, Meta: models.NewListMeta(page, limit, total)}
}
