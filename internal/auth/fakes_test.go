package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
)

type fakeCode struct {
	deviceID  uuid.UUID
	expiresAt time.Time
	consumed  bool
}

type fakeCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*fakeCode
	now   func() time.Time
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: map[string]*fakeCode{}, now: time.Now}
}

func (f *fakeCodeRepo) CreateOrReplace(_ context.Context, deviceID uuid.UUID, hash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.deviceID == deviceID {
			c.consumed = true
		}
	}
	f.codes[hash] = &fakeCode{deviceID: deviceID, expiresAt: expiresAt}
	return nil
}

func (f *fakeCodeRepo) Consume(_ context.Context, hash string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.codes[hash]
	if !ok || c.consumed || !c.expiresAt.After(f.now()) {
		return uuid.Nil, repo.ErrNotFound
	}
	c.consumed = true
	return c.deviceID, nil
}

func (f *fakeCodeRepo) outstanding(deviceID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.codes {
		if c.deviceID == deviceID && !c.consumed {
			n++
		}
	}
	return n
}

type fakeDeviceRepo struct {
	devices map[uuid.UUID]model.Device
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: map[uuid.UUID]model.Device{}}
}

func (f *fakeDeviceRepo) Create(_ context.Context, userID uuid.UUID, name string) (model.Device, error) {
	d := model.Device{ID: uuid.New(), UserID: userID, DeviceName: name, CreatedAt: time.Now()}
	f.devices[d.ID] = d
	return d, nil
}

func (f *fakeDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (model.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return model.Device{}, repo.ErrNotFound
	}
	return d, nil
}

func (f *fakeDeviceRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (model.Device, error) {
	d, err := f.GetByID(ctx, id)
	if err != nil || d.UserID != userID {
		return model.Device{}, repo.ErrNotFound
	}
	return d, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]model.UserProfile
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (model.UserProfile, error) {
	u, ok := f.users[id]
	if !ok {
		return model.UserProfile{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, name string) (model.UserProfile, error) {
	for _, u := range f.users {
		if u.Username == name {
			return u, nil
		}
	}
	return model.UserProfile{}, repo.ErrNotFound
}

func (f *fakeUserRepo) Upsert(_ context.Context, p model.UserProfile) (model.UserProfile, error) {
	f.users[p.UserID] = p
	return p, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.users, id)
	return nil
}

type presenceCall struct {
	deviceID     uuid.UUID
	status       model.Status
	availability model.Availability
}

type fakePresenceRepo struct {
	repo.PresenceRepo
	calls []presenceCall
	err   error
}

func (f *fakePresenceRepo) SetByDevice(_ context.Context, deviceID uuid.UUID, status model.Status, availability model.Availability) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, presenceCall{deviceID, status, availability})
	return nil
}

type fakeMinter struct {
	subs []string
	err  error
}

func (f *fakeMinter) Mint(sub string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.subs = append(f.subs, sub)
	return "vonage-token-for-" + sub, nil
}

var errStoreDown = errors.New("store down")
