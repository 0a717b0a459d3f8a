package auth

import (
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Email  string
	Name   string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by storefront clients.
// The user id travels in the registered subject claim.
type AccessTokenClaims struct {
	Email string         `json:"email,omitempty"`
	Name  string         `json:"name,omitempty"`
	Role  enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the authenticated user identifier.
func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
