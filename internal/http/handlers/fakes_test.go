package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/auth"
	"github.com/contactdesk/server/internal/messenger"
	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/rtc"
	"github.com/contactdesk/server/internal/vonage"
)

type fakeFlow struct {
	device  model.Device
	code    string
	session auth.Session
	err     error

	gotUserID       uuid.UUID
	gotCode         string
	gotToken        string
	gotStatus       model.Status
	gotAvailability model.Availability
}

func (f *fakeFlow) NewDevice(_ context.Context, userID uuid.UUID, name string) (model.Device, string, error) {
	f.gotUserID = userID
	d := f.device
	d.DeviceName = name
	return d, f.code, f.err
}

func (f *fakeFlow) NewCode(_ context.Context, userID, deviceID uuid.UUID) (model.Device, string, error) {
	f.gotUserID = userID
	d := f.device
	d.ID = deviceID
	return d, f.code, f.err
}

func (f *fakeFlow) Login(_ context.Context, code string, status model.Status, availability model.Availability) (auth.Session, error) {
	f.gotCode, f.gotStatus, f.gotAvailability = code, status, availability
	return f.session, f.err
}

func (f *fakeFlow) Refresh(_ context.Context, token string, status model.Status, availability model.Availability) (auth.Session, error) {
	f.gotToken, f.gotStatus, f.gotAvailability = token, status, availability
	return f.session, f.err
}

func (f *fakeFlow) UpdatePresence(_ context.Context, token string, status model.Status, availability model.Availability) error {
	f.gotToken, f.gotStatus, f.gotAvailability = token, status, availability
	return f.err
}

type botCall struct {
	action string
	cid    string
	ch     model.Channel
}

type fakeBot struct {
	calls []botCall
	err   error
}

func (f *fakeBot) ActionConnect(_ context.Context, cid string, ch model.Channel) error {
	f.calls = append(f.calls, botCall{"connect", cid, ch})
	return f.err
}

func (f *fakeBot) ActionNone(_ context.Context, cid string, ch model.Channel) error {
	f.calls = append(f.calls, botCall{"none", cid, ch})
	return f.err
}

type fakeClaimer struct {
	claim model.AgentClaim
	err   error
	kinds []model.Availability
}

func (f *fakeClaimer) ClaimAvailableAgent(_ context.Context, kind model.Availability) (model.AgentClaim, error) {
	f.kinds = append(f.kinds, kind)
	return f.claim, f.err
}

type fakeVendor struct {
	users   map[string]vonage.User
	created []vonage.User
	deleted []string
	getErr  error
	err     error
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{users: map[string]vonage.User{}}
}

func (f *fakeVendor) GetUser(_ context.Context, name string) (vonage.User, error) {
	if f.getErr != nil {
		return vonage.User{}, f.getErr
	}
	u, ok := f.users[name]
	if !ok {
		return vonage.User{}, &vonage.APIError{Method: http.MethodGet, Path: "/users/" + name, StatusCode: http.StatusNotFound, Status: "404 Not Found"}
	}
	return u, nil
}

func (f *fakeVendor) CreateUser(_ context.Context, user vonage.User) (vonage.User, error) {
	if f.err != nil {
		return vonage.User{}, f.err
	}
	user.ID = fmt.Sprintf("USR-%d", len(f.created)+1)
	f.created = append(f.created, user)
	f.users[user.Name] = user
	return user, nil
}

func (f *fakeVendor) DeleteUser(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProfiles struct {
	byID    map[uuid.UUID]model.UserProfile
	deleted []uuid.UUID
	getErr  error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{byID: map[uuid.UUID]model.UserProfile{}}
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (model.UserProfile, error) {
	if f.getErr != nil {
		return model.UserProfile{}, f.getErr
	}
	p, ok := f.byID[id]
	if !ok {
		return model.UserProfile{}, fmt.Errorf("user %s: %w", id, repo.ErrNotFound)
	}
	return p, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, p model.UserProfile) (model.UserProfile, error) {
	f.byID[p.UserID] = p
	return p, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("user %s: %w", id, repo.ErrNotFound)
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProfileLookup struct {
	profile messenger.Profile
	err     error
}

func (f fakeProfileLookup) Profile(_ context.Context, _ string) (messenger.Profile, error) {
	return f.profile, f.err
}

type fakeDispatcher struct {
	events []rtc.Event
	err    error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, ev rtc.Event) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeMinter struct {
	subs []string
	err  error
}

func (f *fakeMinter) Mint(sub string) (string, error) {
	f.subs = append(f.subs, sub)
	if f.err != nil {
		return "", f.err
	}
	return "vonage-token-for-" + sub, nil
}

type fakeDirectory struct {
	users   []vonage.User
	err     error
	queries []url.Values
	names   []string
}

func (f *fakeDirectory) ListConversations(_ context.Context, q url.Values) (json.RawMessage, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"page_size":10,"_embedded":{"conversations":[{"id":"CON-1","name":"sms:conversation:15550100"}]}}`), nil
}

func (f *fakeDirectory) ListUsers(_ context.Context, q url.Values) (json.RawMessage, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(`{"page_size":10,"_embedded":{"users":[{"id":"USR-1","name":"agent1@example.com"}]}}`), nil
}

func (f *fakeDirectory) FindUserByName(_ context.Context, name string) ([]vonage.User, error) {
	f.names = append(f.names, name)
	return f.users, f.err
}
