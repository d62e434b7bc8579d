package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the registered claims of a JWT bearer token, decoded for display only
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// PeekClaims decodes the registered claims of a JWT without verifying its
// signature. The backend remains the authority on token validity; opaque
// tokens report ok=false.
func PeekClaims(token string) (Claims, bool) {
	var registered jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &registered); err != nil {
		return Claims{}, false
	}

	c := Claims{
		Subject: registered.Subject,
		Issuer:  registered.Issuer,
	}
	if registered.IssuedAt != nil {
		c.IssuedAt = registered.IssuedAt.Time
	}
	if registered.ExpiresAt != nil {
		c.ExpiresAt = registered.ExpiresAt.Time
	}
	return c, true
}
