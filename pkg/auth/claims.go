package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AccountID string
	JTI       string
}

// AccessTokenClaims represents the typed JWT presented by clients. The
// subject carries the external account identifier; user resolution against
// the local users table happens in middleware.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
}

// AccountID returns the external account identifier the token was minted for.
func (c *AccessTokenClaims) AccountID() string {
	return c.Subject
}
