package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenExpiry = 90 * 24 * time.Hour

// RefreshPayload identifies the device a refresh token was issued to
type RefreshPayload struct {
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
}

type refreshClaims struct {
	RefreshPayload
	jwt.RegisteredClaims
}

// MintDeviceRefreshToken signs payload with secret (HS256, 90-day expiry)
func MintDeviceRefreshToken(secret string, payload RefreshPayload) (string, error) {
	return mintDeviceRefreshToken(secret, payload, time.Now())
}

func mintDeviceRefreshToken(secret string, payload RefreshPayload, now time.Time) (string, error) {
	claims := &refreshClaims{
		RefreshPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(refreshTokenExpiry)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", &MintTokenError{Reason: "error minting refresh token", Err: err}
	}
	return signed, nil
}

// VerifyDeviceRefreshToken returns the payload of a valid token, or nil when the token is
// expired, tampered with, signed with another secret or malformed.
func VerifyDeviceRefreshToken(secret, token string) *RefreshPayload {
	claims := &refreshClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil
	}
	if claims.DeviceID == "" || claims.UserID == "" {
		return nil
	}
	payload := claims.RefreshPayload
	return &payload
}
