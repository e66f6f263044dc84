package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yashrajoria/storefront-api/auth"
	apperrors "github.com/yashrajoria/storefront-api/errors"
	"github.com/yashrajoria/storefront-api/logger"
	"github.com/yashrajoria/storefront-api/services"
	"go.uber.org/zap"
)

const (
	AccountIDKey = "account_id"
	RoleKey      = "role"
	EmailKey     = "email"
	AbilityKey   = "ability"
)

// Auth requires a valid access token in the Authorization header.
func Auth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, tokens)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the caller when a valid token is present and lets
// anonymous requests through. A malformed or expired token is still rejected.
func OptionalAuth(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}
		claims, err := bearerClaims(c, tokens)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

func bearerClaims(c *gin.Context, tokens *auth.TokenManager) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, apperrors.WithMessage(apperrors.ErrUnauthorized, "Missing or malformed bearer token")
	}

	claims, err := tokens.ParseAndValidateToken(strings.TrimSpace(token), auth.TokenTypeAccess)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, auth.ErrExpiredToken):
		return nil, apperrors.Wrap(apperrors.ErrTokenExpired, err)
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidToken, err)
	}
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(AccountIDKey, claims.AccountID)
	c.Set(RoleKey, claims.Role)
	c.Set(EmailKey, claims.Email)
}

// AccountID returns the authenticated account, if any.
func AccountID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(AccountIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func Role(c *gin.Context) string {
	return c.GetString(RoleKey)
}

// RequirePermission loads the caller's ability for their role and rejects the
// request unless it grants action on subject. Must run after Auth.
func RequirePermission(perms services.PermissionService, action, subject string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ability, err := AbilityOf(c, perms)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}
		if !ability.Can(action, subject) {
			logger.Warn(c, "permission denied",
				zap.String("role", Role(c)),
				zap.String("action", action),
				zap.String("subject", subject),
			)
			c.Error(apperrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// AbilityOf returns the caller's ability, resolving and memoizing it on the
// context on first use. Anonymous callers get an empty ability.
func AbilityOf(c *gin.Context, perms services.PermissionService) (*services.Ability, error) {
	if v, ok := c.Get(AbilityKey); ok {
		if a, ok := v.(*services.Ability); ok {
			return a, nil
		}
	}
	role := Role(c)
	if role == "" {
		return services.NewAbility(nil), nil
	}
	ability, err := perms.AbilityFor(c.Request.Context(), role)
	if err != nil {
		return nil, err
	}
	c.Set(AbilityKey, ability)
	return ability, nil
}
