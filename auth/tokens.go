package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrWrongTokenType = errors.New("invalid token type")
)

// Claims is the decoded, validated content of a token.
type Claims struct {
	AccountID uuid.UUID
	Email     string
	Role      string
	Type      string
	TokenID   string
	ExpiresAt time.Time
}

// TokenManager issues and validates HS256 access and refresh tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (m *TokenManager) AccessTTL() time.Duration { return m.accessTTL }

// GenerateAccessToken signs a short-lived access token.
func (m *TokenManager) GenerateAccessToken(accountID uuid.UUID, email, role string) (string, error) {
	now := m.now()
	claims := jwt.MapClaims{
		"sub":   accountID.String(),
		"email": email,
		"role":  role,
		"typ":   TokenTypeAccess,
		"iat":   now.Unix(),
		"exp":   now.Add(m.accessTTL).Unix(),
	}
	return m.sign(claims)
}

// GenerateRefreshToken signs a refresh token. The returned jti must be
// persisted so the token can be rotated and revoked.
func (m *TokenManager) GenerateRefreshToken(accountID uuid.UUID) (token, jti string, expiresAt time.Time, err error) {
	now := m.now()
	jti = uuid.NewString()
	expiresAt = now.Add(m.refreshTTL)
	claims := jwt.MapClaims{
		"sub": accountID.String(),
		"typ": TokenTypeRefresh,
		"jti": jti,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token, err = m.sign(claims)
	return token, jti, expiresAt, err
}

func (m *TokenManager) sign(claims jwt.MapClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidateToken verifies signature, expiry and typ.
func (m *TokenManager) ParseAndValidateToken(tokenStr, expectedType string) (*Claims, error) {
	parser := jwt.Parser{}
	token, err := parser.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	typ, _ := mc["typ"].(string)
	if typ != expectedType {
		return nil, ErrWrongTokenType
	}

	sub, _ := mc["sub"].(string)
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{AccountID: accountID, Type: typ}
	claims.Email, _ = mc["email"].(string)
	claims.Role, _ = mc["role"].(string)
	claims.TokenID, _ = mc["jti"].(string)
	if exp, ok := mc["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	if expectedType == TokenTypeRefresh && claims.TokenID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
