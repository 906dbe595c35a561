package auth

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// TokenFromJWT builds a bearer Token identity from a JWT, taking the
// expiration from its exp claim. The signature is not verified.
func TokenFromJWT(raw string) (Identity, error) {
	claims := gojwt.MapClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Identity{}, fmt.Errorf("auth: parse bearer token: %w", err)
	}
	var expiration time.Time
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Identity{}, fmt.Errorf("auth: invalid exp claim: %w", err)
	}
	if exp != nil {
		expiration = exp.Time
	}
	return NewIdentity(Token{Value: raw}, expiration), nil
}
