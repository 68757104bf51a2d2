package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
)

var (
	// ErrInvalidDeviceCode is returned by Login for any code that cannot be traced to a user
	ErrInvalidDeviceCode = errors.New("invalid device code")
	// ErrInvalidRefreshToken is returned by Refresh and UpdatePresence for unusable refresh tokens
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUnauthorizedDevice is returned when a device does not belong to the caller
	ErrUnauthorizedDevice = errors.New("device does not belong to user")
)

// TokenMinter mints vendor SDK tokens for a username
type TokenMinter interface {
	Mint(sub string) (string, error)
}

// Session is the credential pair handed to a paired device
type Session struct {
	VonageToken  string `json:"vonageToken"`
	RefreshToken string `json:"refreshToken"`
}

// DeviceService orchestrates device pairing, login, refresh and presence updates
type DeviceService struct {
	devices       repo.DeviceRepo
	users         repo.UserRepo
	presence      repo.PresenceRepo
	codes         *DeviceCodes
	minter        TokenMinter
	refreshSecret string
	log           *slog.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(
	devices repo.DeviceRepo,
	users repo.UserRepo,
	presence repo.PresenceRepo,
	codes *DeviceCodes,
	minter TokenMinter,
	refreshSecret string,
) *DeviceService {
	return &DeviceService{
		devices:       devices,
		users:         users,
		presence:      presence,
		codes:         codes,
		minter:        minter,
		refreshSecret: refreshSecret,
		log:           slog.Default().With("component", "devices"),
	}
}

// NewDevice registers a device for userID and issues its first pairing code
func (s *DeviceService) NewDevice(ctx context.Context, userID uuid.UUID, name string) (model.Device, string, error) {
	device, err := s.devices.Create(ctx, userID, name)
	if err != nil {
		return model.Device{}, "", fmt.Errorf("error creating device: %w", err)
	}
	code, err := s.codes.Issue(ctx, device.ID)
	if err != nil {
		return model.Device{}, "", fmt.Errorf("error creating device code: %w", err)
	}
	return device, code, nil
}

// NewCode issues a new pairing code for one of the caller's devices
func (s *DeviceService) NewCode(ctx context.Context, userID, deviceID uuid.UUID) (model.Device, string, error) {
	device, err := s.devices.GetForUser(ctx, deviceID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Device{}, "", ErrUnauthorizedDevice
		}
		return model.Device{}, "", fmt.Errorf("error getting device: %w", err)
	}
	code, err := s.codes.Issue(ctx, device.ID)
	if err != nil {
		return model.Device{}, "", fmt.Errorf("error creating device code: %w", err)
	}
	return device, code, nil
}

// Login exchanges a pairing code for a session and marks the device's user present
func (s *DeviceService) Login(ctx context.Context, code string, status model.Status, availability model.Availability) (Session, error) {
	deviceID, err := s.codes.Redeem(ctx, code)
	if err != nil {
		s.log.Warn("error verifying device code", "err", err)
		return Session{}, ErrInvalidDeviceCode
	}

	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		s.log.Warn("error getting device", "device_id", deviceID, "err", err)
		return Session{}, ErrInvalidDeviceCode
	}

	user, err := s.users.GetByID(ctx, device.UserID)
	if err != nil {
		s.log.Warn("error getting username", "user_id", device.UserID, "err", err)
		return Session{}, ErrInvalidDeviceCode
	}

	if err := s.presence.SetByDevice(ctx, deviceID, status, availability); err != nil {
		return Session{}, fmt.Errorf("error setting user presence: %w", err)
	}

	return s.session(user.Username, RefreshPayload{DeviceID: deviceID.String(), UserID: user.UserID.String()})
}

// Refresh exchanges a refresh token for a new session
func (s *DeviceService) Refresh(ctx context.Context, refreshToken string, status model.Status, availability model.Availability) (Session, error) {
	payload, deviceID, userID, err := s.verify(refreshToken)
	if err != nil {
		return Session{}, err
	}

	if _, err := s.devices.GetForUser(ctx, deviceID, userID); err != nil {
		s.log.Warn("error getting device", "device_id", deviceID, "err", err)
		return Session{}, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.log.Warn("error getting username", "user_id", userID, "err", err)
		return Session{}, ErrInvalidRefreshToken
	}

	if err := s.presence.SetByDevice(ctx, deviceID, status, availability); err != nil {
		return Session{}, fmt.Errorf("error setting user presence: %w", err)
	}

	return s.session(user.Username, *payload)
}

// UpdatePresence sets the presence of the device behind refreshToken (used on logout)
func (s *DeviceService) UpdatePresence(ctx context.Context, refreshToken string, status model.Status, availability model.Availability) error {
	_, deviceID, _, err := s.verify(refreshToken)
	if err != nil {
		return err
	}
	if err := s.presence.SetByDevice(ctx, deviceID, status, availability); err != nil {
		s.log.Error("error setting user presence", "device_id", deviceID, "err", err)
		return fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	return nil
}

func (s *DeviceService) verify(refreshToken string) (*RefreshPayload, uuid.UUID, uuid.UUID, error) {
	payload := VerifyDeviceRefreshToken(s.refreshSecret, refreshToken)
	if payload == nil {
		return nil, uuid.Nil, uuid.Nil, ErrInvalidRefreshToken
	}
	deviceID, err := uuid.Parse(payload.DeviceID)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, ErrInvalidRefreshToken
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, ErrInvalidRefreshToken
	}
	return payload, deviceID, userID, nil
}

func (s *DeviceService) session(username string, payload RefreshPayload) (Session, error) {
	vonageToken, err := s.minter.Mint(username)
	if err != nil {
		return Session{}, fmt.Errorf("error minting vonage token: %w", err)
	}
	refreshToken, err := MintDeviceRefreshToken(s.refreshSecret, payload)
	if err != nil {
		return Session{}, fmt.Errorf("error minting refresh token: %w", err)
	}
	return Session{VonageToken: vonageToken, RefreshToken: refreshToken}, nil
}
