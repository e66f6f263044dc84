package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/yashrajoria/storefront-api/logger"
	"gorm.io/gorm"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code and message, so
// wrapped copies still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Wrap returns a copy of base carrying cause.
func Wrap(base *Error, cause error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Details: base.Details, Err: cause}
}

// WithMessage returns a copy of base with a more specific message. The copy
// no longer matches base with errors.Is; it keeps the status code.
func WithMessage(base *Error, message string) *Error {
	return &Error{Code: base.Code, Message: message}
}

// WithDetails returns a copy of base carrying details for the response body.
func WithDetails(base *Error, details any) *Error {
	return &Error{Code: base.Code, Message: base.Message, Details: details}
}

// Common error types
var (
	ErrBadRequest         = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized       = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrForbidden          = New(http.StatusForbidden, "Forbidden", nil)
	ErrNotFound           = New(http.StatusNotFound, "Not found", nil)
	ErrConflict           = New(http.StatusConflict, "Conflict", nil)
	ErrGone               = New(http.StatusGone, "Gone", nil)
	ErrTooManyRequests    = New(http.StatusTooManyRequests, "Too many requests", nil)
	ErrInternalServer     = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "Service unavailable", nil)
)

// Validation error types
var (
	ErrValidation   = New(http.StatusBadRequest, "Validation error", nil)
	ErrInvalidInput = New(http.StatusBadRequest, "Invalid input", nil)
)

// Authentication error types
var (
	ErrInvalidCredentials = New(http.StatusUnauthorized, "Invalid credentials", nil)
	ErrTokenExpired       = New(http.StatusUnauthorized, "Token expired", nil)
	ErrInvalidToken       = New(http.StatusUnauthorized, "Invalid token", nil)
	ErrNotVerified        = New(http.StatusForbidden, "Account not verified", nil)
	ErrAccountDisabled    = New(http.StatusForbidden, "Account disabled", nil)
	ErrWeakPassword       = New(http.StatusBadRequest, "Password does not meet requirements", nil)
)

// OTP error types
var (
	ErrOTPInvalid         = New(http.StatusBadRequest, "Invalid verification code", nil)
	ErrOTPExpired         = New(http.StatusGone, "Verification code expired", nil)
	ErrOTPUsed            = New(http.StatusConflict, "Verification code already used", nil)
	ErrOTPTooManyAttempts = New(http.StatusTooManyRequests, "Too many verification attempts", nil)
	ErrOTPCooldown        = New(http.StatusTooManyRequests, "Verification code requested too recently", nil)
	ErrNoDeliveryChannel  = New(http.StatusBadRequest, "No email or phone available for delivery", nil)
	ErrDeliveryFailed     = New(http.StatusServiceUnavailable, "Could not deliver verification code", nil)
)

// Business logic error types
var (
	ErrProductNotFound    = New(http.StatusNotFound, "Product not found", nil)
	ErrCartItemNotFound   = New(http.StatusNotFound, "Item not in cart", nil)
	ErrInvalidQuantity    = New(http.StatusBadRequest, "Quantity must be at least 1", nil)
	ErrInsufficientStock  = New(http.StatusBadRequest, "Insufficient stock", nil)
	ErrInvalidOrder       = New(http.StatusBadRequest, "Invalid order", nil)
	ErrOrderNotFound      = New(http.StatusNotFound, "Order not found", nil)
	ErrOrderNotCancelable = New(http.StatusConflict, "Order can no longer be canceled", nil)
	ErrPaymentFailed      = New(http.StatusBadRequest, "Payment failed", nil)
	ErrInvalidDiscount    = New(http.StatusBadRequest, "Invalid discount code", nil)
)

// Database error types
var (
	ErrDatabaseConnection  = New(http.StatusServiceUnavailable, "Database connection error", nil)
	ErrDatabaseQuery       = New(http.StatusInternalServerError, "Database query error", nil)
	ErrDatabaseTransaction = New(http.StatusInternalServerError, "Database transaction error", nil)
)

// Resolve maps any error to the *Error rendered for it.
func Resolve(err error) *Error {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return Wrap(ErrNotFound, err)
	}

	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &Error{Code: ErrValidation.Code, Message: ErrValidation.Message, Details: fields, Err: err}
	}

	return Wrap(ErrInternalServer, err)
}

// ErrorMiddleware renders the last error attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := Resolve(err)
		if appErr.Code >= http.StatusInternalServerError {
			logger.Error(c, "request failed", err)
		}

		c.AbortWithStatusJSON(appErr.Code, appErr)
	}
}
