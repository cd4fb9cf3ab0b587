package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Entitlement token validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// EntitlementClaims defines the signed grant returned on successful
// validation. Clients may cache it and verify offline until it expires.
type EntitlementClaims struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
	jwt.RegisteredClaims
}

// SignEntitlement signs an entitlement token for a granted (key, device)
// pair. The token expires at the license expiry or after maxTTL, whichever
// comes first; a zero licenseExpiry means the license never expires and
// maxTTL alone applies.
func SignEntitlement(secret, licenseKey, deviceID string, now, licenseExpiry time.Time, maxTTL time.Duration) (string, error) {
	expiresAt := now.Add(maxTTL)
	if !licenseExpiry.IsZero() && licenseExpiry.Before(expiresAt) {
		expiresAt = licenseExpiry
	}

	claims := EntitlementClaims{
		LicenseKey: licenseKey,
		DeviceID:   deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseEntitlement validates an entitlement token and returns its claims.
func ParseEntitlement(secret, tokenString string) (*EntitlementClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &EntitlementClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*EntitlementClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
