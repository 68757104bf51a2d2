package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeviceCodeRepo defines the interface for device pairing code operations
type DeviceCodeRepo interface {
	CreateOrReplace(ctx context.Context, deviceID uuid.UUID, codeHashHex string, expiresAt time.Time) error
	Consume(ctx context.Context, codeHashHex string) (uuid.UUID, error)
}

type deviceCodeRepo struct {
	db *sql.DB
}

// NewDeviceCodeRepo creates a new DeviceCodeRepo instance
func NewDeviceCodeRepo(db *sql.DB) DeviceCodeRepo {
	return &deviceCodeRepo{db: db}
}

// CreateOrReplace keeps at most one outstanding code per device: it consumes any unconsumed
// code of the device and inserts the new one in the same transaction.
func (r *deviceCodeRepo) CreateOrReplace(ctx context.Context, deviceID uuid.UUID, codeHashHex string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Serialises concurrent requests for the same device; released on COMMIT/ROLLBACK.
	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, deviceID.String())
	if err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	// Unique index: device_id WHERE consumed_at IS NULL. Expired rows count too.
	_, err = tx.ExecContext(ctx, `
		UPDATE device_codes
		SET consumed_at = now()
		WHERE device_id = $1 AND consumed_at IS NULL
	`, deviceID)
	if err != nil {
		return fmt.Errorf("consume existing codes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO device_codes (device_id, code_hash, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, codeHashHex, expiresAt)
	if err != nil {
		return fmt.Errorf("insert device code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Consume marks an outstanding, unexpired code as used and returns its device. A code can be
// consumed once; later attempts get ErrNotFound.
func (r *deviceCodeRepo) Consume(ctx context.Context, codeHashHex string) (uuid.UUID, error) {
	var deviceID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		UPDATE device_codes
		SET consumed_at = now()
		WHERE code_hash = $1 AND consumed_at IS NULL AND expires_at > now()
		RETURNING device_id
	`, codeHashHex).Scan(&deviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("device code: %w", ErrNotFound)
		}
		return uuid.Nil, fmt.Errorf("consume device code: %w", err)
	}
	return deviceID, nil
}
