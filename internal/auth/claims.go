package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the only token shape this service accepts. Tokens are issued by the
// console's login flow; this service verifies them and refreshes pairs.
// The jti (RegisteredClaims.ID) is what logout revokes.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
