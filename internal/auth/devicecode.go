package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/contactdesk/server/internal/repo"
)

const (
	deviceCodeLength = 8
	deviceCodeExpiry = 10 * time.Minute
	// no 0/O or 1/I so codes survive being read aloud or typed on a TV remote
	deviceCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pbkdf2Iterations   = 10000
)

// DeviceCodes issues and redeems device pairing codes. Only a salted hash of each code is
// stored; issuing a code replaces any outstanding code for the same device.
type DeviceCodes struct {
	codeRepo repo.DeviceCodeRepo
	salt     string
	now      func() time.Time
}

// NewDeviceCodes creates a device code issuer
func NewDeviceCodes(codeRepo repo.DeviceCodeRepo, salt string) *DeviceCodes {
	return &DeviceCodes{
		codeRepo: codeRepo,
		salt:     salt,
		now:      time.Now,
	}
}

// Issue creates a fresh code for deviceID and returns it in plain text. It is never logged.
func (d *DeviceCodes) Issue(ctx context.Context, deviceID uuid.UUID) (string, error) {
	code, err := generateDeviceCode()
	if err != nil {
		return "", fmt.Errorf("generate device code: %w", err)
	}
	expiresAt := d.now().Add(deviceCodeExpiry)
	if err := d.codeRepo.CreateOrReplace(ctx, deviceID, hashDeviceCode(code, d.salt), expiresAt); err != nil {
		return "", fmt.Errorf("store device code: %w", err)
	}
	return code, nil
}

// Redeem consumes code and returns the device it was issued to
func (d *DeviceCodes) Redeem(ctx context.Context, code string) (uuid.UUID, error) {
	code = normalizeDeviceCode(code)
	if len(code) != deviceCodeLength {
		return uuid.Nil, fmt.Errorf("malformed device code: %w", repo.ErrNotFound)
	}
	return d.codeRepo.Consume(ctx, hashDeviceCode(code, d.salt))
}

func generateDeviceCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(deviceCodeAlphabet)))
	for i := 0; i < deviceCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(deviceCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func normalizeDeviceCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "")
}

// hashDeviceCode returns PBKDF2-SHA256(code, salt) as hex for DB storage and lookup
func hashDeviceCode(code, salt string) string {
	key := pbkdf2.Key([]byte(code), []byte(salt), pbkdf2Iterations, sha256.Size, sha256.New)
	return hex.EncodeToString(key)
}
