// Package auth provides session management types.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/linkaid/platform/internal/shared/config"
	"github.com/linkaid/platform/internal/shared/types"
)

// Claims is the JWT payload issued at sign-in. The role claim is a
// snapshot; the resolver re-reads the profile when the role changes.
type Claims struct {
	jwt.RegisteredClaims
	FullName  string `json:"full_name,omitempty"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
	Verified  bool   `json:"verified"`
	SessionID string `json:"session_id"`
}

// Session represents an active user session.
type Session struct {
	ID        string    `json:"id"`
	UserID    types.ID  `json:"user_id"`
	Role      Role      `json:"role"`
	CompanyID types.ID  `json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// IssueToken signs an access token for the given user.
func IssueToken(cfg config.AuthConfig, userID types.ID, fullName string, role Role, companyID types.ID, verified bool) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.AccessTokenTTL) * time.Minute)),
		},
		FullName:  fullName,
		Role:      string(role),
		CompanyID: companyID.String(),
		Verified:  verified,
		SessionID: types.NewID().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken validates a signed token and returns its claims.
func ParseToken(cfg config.AuthConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
