package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
)

// DeviceRepo defines the interface for device repository operations
type DeviceRepo interface {
	Create(ctx context.Context, userID uuid.UUID, deviceName string) (model.Device, error)
	GetByID(ctx context.Context, deviceID uuid.UUID) (model.Device, error)
	GetForUser(ctx context.Context, deviceID, userID uuid.UUID) (model.Device, error)
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

// Create creates a new device for a user
func (r *deviceRepo) Create(ctx context.Context, userID uuid.UUID, deviceName string) (model.Device, error) {
	query := `
		INSERT INTO devices (user_id, device_name)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	device := model.Device{UserID: userID, DeviceName: deviceName}
	err := r.db.QueryRowContext(ctx, query, userID, deviceName).Scan(
		&device.ID,
		&device.CreatedAt,
	)
	if err != nil {
		return model.Device{}, fmt.Errorf("failed to create device: %w", err)
	}

	return device, nil
}

// GetByID retrieves a device by ID
func (r *deviceRepo) GetByID(ctx context.Context, deviceID uuid.UUID) (model.Device, error) {
	return r.get(ctx, `
		SELECT id, user_id, device_name, created_at
		FROM devices
		WHERE id = $1
	`, deviceID)
}

// GetForUser retrieves a device only if it still belongs to userID
func (r *deviceRepo) GetForUser(ctx context.Context, deviceID, userID uuid.UUID) (model.Device, error) {
	return r.get(ctx, `
		SELECT id, user_id, device_name, created_at
		FROM devices
		WHERE id = $1 AND user_id = $2
	`, deviceID, userID)
}

func (r *deviceRepo) get(ctx context.Context, query string, args ...interface{}) (model.Device, error) {
	var device model.Device
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&device.ID,
		&device.UserID,
		&device.DeviceName,
		&device.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Device{}, fmt.Errorf("device: %w", ErrNotFound)
		}
		return model.Device{}, fmt.Errorf("failed to query device: %w", err)
	}
	return device, nil
}
