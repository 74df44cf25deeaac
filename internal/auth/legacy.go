package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// LegacyClaims are the claims on self-issued HMAC tokens. Field
// deployments without an OIDC account authenticate with these; their
// tokens additionally carry the sensor station they report for.
type LegacyClaims struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Station string `json:"station,omitempty"`
	jwt.RegisteredClaims
}

// ValidateLegacyToken validates an HMAC-signed token
func ValidateLegacyToken(tokenString, secret string) (*LegacyClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &LegacyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*LegacyClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}
