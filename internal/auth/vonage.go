package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultVonageTokenExpiry = 24 * time.Hour

var errInvalidACL = errors.New("invalid ACL")

// MintTokenError is returned when a token cannot be minted
type MintTokenError struct {
	Reason string
	Err    error
}

func (e *MintTokenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mint token: %s: %v", e.Reason, e.Err)
	}
	return "mint token: " + e.Reason
}

func (e *MintTokenError) Unwrap() error { return e.Err }

// ACL grants the SDK access to API paths. Every path maps to an (empty) rule object.
type ACL struct {
	Paths map[string]struct{} `json:"paths"`
}

// DefaultACL returns the ACL template every SDK token carries
func DefaultACL() ACL {
	return ACL{Paths: map[string]struct{}{
		"/*/users/**":         {},
		"/*/conversations/**": {},
		"/*/sessions/**":      {},
		"/*/devices/**":       {},
		"/*/image/**":         {},
		"/*/media/**":         {},
		"/*/applications/**":  {},
		"/*/push/**":          {},
		"/*/knocking/**":      {},
		"/*/legs/**":          {},
	}}
}

func (a ACL) validate() error {
	if a.Paths == nil {
		return fmt.Errorf("%w: paths is required", errInvalidACL)
	}
	for p := range a.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty path", errInvalidACL)
		}
	}
	return nil
}

// TokenOptions tunes a Vonage token
type TokenOptions struct {
	Alg string
	ACL ACL
	Exp time.Duration
}

// DefaultTokenOptions are RS256, the default ACL and a 24h lifetime
func DefaultTokenOptions() TokenOptions {
	return TokenOptions{Alg: "RS256", ACL: DefaultACL(), Exp: defaultVonageTokenExpiry}
}

// VonageClaims are the claims of a Vonage client SDK / API token
type VonageClaims struct {
	ApplicationID string `json:"application_id"`
	ACL           ACL    `json:"acl"`
	jwt.RegisteredClaims
}

// MintVonageToken signs a Vonage token for applicationID. sub may be empty for application
// (admin) tokens.
func MintVonageToken(privateKeyPEM, applicationID, sub string, opts TokenOptions) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return "", &MintTokenError{Reason: "invalid private key", Err: err}
	}
	return mintVonageToken(key, applicationID, sub, opts, time.Now())
}

func mintVonageToken(key *rsa.PrivateKey, applicationID, sub string, opts TokenOptions, now time.Time) (string, error) {
	if opts.Alg == "" {
		opts.Alg = "RS256"
	}
	if opts.Exp <= 0 {
		opts.Exp = defaultVonageTokenExpiry
	}
	if err := opts.ACL.validate(); err != nil {
		return "", &MintTokenError{Reason: "Invalid ACL", Err: err}
	}

	method, ok := jwt.GetSigningMethod(opts.Alg).(*jwt.SigningMethodRSA)
	if !ok {
		return "", &MintTokenError{Reason: fmt.Sprintf("unsupported algorithm %q", opts.Alg)}
	}

	claims := &VonageClaims{
		ApplicationID: applicationID,
		ACL:           opts.ACL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.Exp)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		return "", &MintTokenError{Reason: "error signing token", Err: err}
	}
	return signed, nil
}

// VonageMinter mints Vonage tokens with a key parsed once at startup
type VonageMinter struct {
	key           *rsa.PrivateKey
	applicationID string
	opts          TokenOptions
}

// NewVonageMinter parses the application private key
func NewVonageMinter(privateKeyPEM, applicationID string) (*VonageMinter, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, &MintTokenError{Reason: "invalid private key", Err: err}
	}
	return &VonageMinter{key: key, applicationID: applicationID, opts: DefaultTokenOptions()}, nil
}

// Mint creates an SDK token for the vendor user sub
func (m *VonageMinter) Mint(sub string) (string, error) {
	return mintVonageToken(m.key, m.applicationID, sub, m.opts, time.Now())
}

// AdminToken creates an application token without a subject, used for API calls
func (m *VonageMinter) AdminToken() (string, error) {
	return m.Mint("")
}

// ApplicationID returns the application the minter signs for
func (m *VonageMinter) ApplicationID() string {
	return m.applicationID
}
