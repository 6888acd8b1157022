package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ovrpay/ovrpay-backend/pkg/enums"
)

// AccessTokenClaims are the claims carried by city SSO access tokens.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"uid"`
	Role   enums.UserRole `json:"role"`
	Name   string         `json:"name,omitempty"`
	Badge  string         `json:"badge,omitempty"`
	jwt.RegisteredClaims
}
