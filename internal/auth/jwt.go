package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const userTokenExpiry = time.Hour

// ErrInvalidUserToken is returned for any user access token that fails verification
var ErrInvalidUserToken = errors.New("invalid user token")

// UserClaims are the claims of a signed-in user's access token
type UserClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a UUID
func (c *UserClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// JWTService verifies (and, for tests and tooling, signs) user access tokens issued by the
// auth provider with the shared project secret.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
	}
}

// SignUserToken creates an access token for userID (1h expiry)
func (s *JWTService) SignUserToken(userID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := &UserClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(userTokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign user token: %w", err)
	}

	return tokenString, nil
}

// VerifyToken verifies and parses a user access token
func (s *JWTService) VerifyToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUserToken, err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidUserToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, fmt.Errorf("%w: sub is not a user id", ErrInvalidUserToken)
	}

	return claims, nil
}
