package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}
