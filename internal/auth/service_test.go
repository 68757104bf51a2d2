package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactdesk/server/internal/model"
)

const testRefreshSecret = "refresh-secret"

type serviceFixture struct {
	svc      *DeviceService
	devices  *fakeDeviceRepo
	users    *fakeUserRepo
	presence *fakePresenceRepo
	minter   *fakeMinter
	user     model.UserProfile
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		devices:  newFakeDeviceRepo(),
		presence: &fakePresenceRepo{},
		minter:   &fakeMinter{},
		user: model.UserProfile{
			UserID:   uuid.New(),
			Username: "agent@example.com",
			Role:     model.RoleAgent,
		},
	}
	f.users = &fakeUserRepo{users: map[uuid.UUID]model.UserProfile{f.user.UserID: f.user}}
	codes := NewDeviceCodes(newFakeCodeRepo(), "salt")
	f.svc = NewDeviceService(f.devices, f.users, f.presence, codes, f.minter, testRefreshSecret)
	return f
}

func TestDeviceService_loginFlow(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	device, code, err := f.svc.NewDevice(ctx, f.user.UserID, "front desk")
	require.NoError(t, err)
	assert.Equal(t, "front desk", device.DeviceName)
	assert.Len(t, code, deviceCodeLength)

	session, err := f.svc.Login(ctx, code, model.StatusAvailable, model.AvailabilityAll)
	require.NoError(t, err)
	assert.NotEmpty(t, session.VonageToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, []string{"agent@example.com"}, f.minter.subs)

	require.Len(t, f.presence.calls, 1)
	assert.Equal(t, presenceCall{device.ID, model.StatusAvailable, model.AvailabilityAll}, f.presence.calls[0])

	payload := VerifyDeviceRefreshToken(testRefreshSecret, session.RefreshToken)
	require.NotNil(t, payload)
	assert.Equal(t, device.ID.String(), payload.DeviceID)
	assert.Equal(t, f.user.UserID.String(), payload.UserID)

	_, err = f.svc.Login(ctx, code, model.StatusAvailable, model.AvailabilityAll)
	assert.ErrorIs(t, err, ErrInvalidDeviceCode, "code reuse")
}

func TestDeviceService_loginRejects(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.svc.Login(ctx, "ZZZZZZZZ", model.StatusAvailable, model.AvailabilityAll)
	assert.ErrorIs(t, err, ErrInvalidDeviceCode)

	// device whose user has no profile
	_, code, err := f.svc.NewDevice(ctx, uuid.New(), "orphan")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, code, model.StatusAvailable, model.AvailabilityAll)
	assert.ErrorIs(t, err, ErrInvalidDeviceCode)
	assert.Empty(t, f.presence.calls)
}

func TestDeviceService_loginPresenceFailureIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	_, code, err := f.svc.NewDevice(ctx, f.user.UserID, "desk")
	require.NoError(t, err)

	f.presence.err = errStoreDown
	_, err = f.svc.Login(ctx, code, model.StatusAvailable, model.AvailabilityAll)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidDeviceCode)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestDeviceService_newCodeRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	device, _, err := f.svc.NewDevice(ctx, f.user.UserID, "desk")
	require.NoError(t, err)

	_, _, err = f.svc.NewCode(ctx, uuid.New(), device.ID)
	assert.ErrorIs(t, err, ErrUnauthorizedDevice)

	got, code, err := f.svc.NewCode(ctx, f.user.UserID, device.ID)
	require.NoError(t, err)
	assert.Equal(t, device.ID, got.ID)
	assert.NotEmpty(t, code)
}

func TestDeviceService_refresh(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	device, code, err := f.svc.NewDevice(ctx, f.user.UserID, "desk")
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, code, model.StatusAvailable, model.AvailabilityAll)
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(ctx, session.RefreshToken, model.StatusBusy, model.AvailabilityVoice)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.VonageToken)
	payload := VerifyDeviceRefreshToken(testRefreshSecret, refreshed.RefreshToken)
	require.NotNil(t, payload)
	assert.Equal(t, device.ID.String(), payload.DeviceID)
	assert.Equal(t, presenceCall{device.ID, model.StatusBusy, model.AvailabilityVoice}, f.presence.calls[len(f.presence.calls)-1])

	_, err = f.svc.Refresh(ctx, "garbage", model.StatusAvailable, model.AvailabilityAll)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	delete(f.devices.devices, device.ID)
	_, err = f.svc.Refresh(ctx, session.RefreshToken, model.StatusAvailable, model.AvailabilityAll)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "device removed")
}

func TestDeviceService_updatePresence(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	device, code, err := f.svc.NewDevice(ctx, f.user.UserID, "desk")
	require.NoError(t, err)
	session, err := f.svc.Login(ctx, code, model.StatusAvailable, model.AvailabilityAll)
	require.NoError(t, err)

	require.NoError(t, f.svc.UpdatePresence(ctx, session.RefreshToken, model.StatusOffline, model.AvailabilityAll))
	assert.Equal(t, presenceCall{device.ID, model.StatusOffline, model.AvailabilityAll}, f.presence.calls[len(f.presence.calls)-1])

	assert.ErrorIs(t, f.svc.UpdatePresence(ctx, "nope", model.StatusOffline, model.AvailabilityAll), ErrInvalidRefreshToken)

	f.presence.err = errStoreDown
	assert.ErrorIs(t, f.svc.UpdatePresence(ctx, session.RefreshToken, model.StatusOffline, model.AvailabilityAll), ErrInvalidRefreshToken)
}
