package rtc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/vonage"
)

type fakeUsers map[string]model.UserProfile

func (f fakeUsers) GetByUsername(_ context.Context, name string) (model.UserProfile, error) {
	u, ok := f[name]
	if !ok {
		return model.UserProfile{}, fmt.Errorf("user %q: %w", name, repo.ErrNotFound)
	}
	return u, nil
}

type activityCall struct {
	userID   uuid.UUID
	status   model.Status
	activity model.Activity
}

type usernameCall struct {
	username     string
	status       model.Status
	availability model.Availability
}

type fakePresence struct {
	activity   []activityCall
	byUsername []usernameCall
	statuses   map[string]model.Status
	available  []model.AgentClaim
}

func (f *fakePresence) SetActivity(_ context.Context, userID uuid.UUID, status model.Status, activity model.Activity) error {
	f.activity = append(f.activity, activityCall{userID, status, activity})
	return nil
}

func (f *fakePresence) SetByUsername(_ context.Context, username string, status model.Status, availability model.Availability) error {
	f.byUsername = append(f.byUsername, usernameCall{username, status, availability})
	return nil
}

func (f *fakePresence) ClaimAvailableAgent(_ context.Context, _ model.Availability) (model.AgentClaim, error) {
	if len(f.available) == 0 {
		return model.AgentClaim{}, repo.ErrNoAgentAvailable
	}
	a := f.available[0]
	f.available = f.available[1:]
	return a, nil
}

func (f *fakePresence) SetStatusByUsername(_ context.Context, username string, status model.Status) error {
	if f.statuses == nil {
		f.statuses = map[string]model.Status{}
	}
	f.statuses[username] = status
	return nil
}

type fakeAPI struct {
	conversations map[string]vonage.Conversation
	members       map[string][]vonage.Member
	created       []vonage.MemberRequest
	events        []vonage.Event
	updatedUsers  map[string]vonage.User
	deleted       []string
	deletedUsers  []string
	nextID        int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		conversations: map[string]vonage.Conversation{},
		members:       map[string][]vonage.Member{},
		updatedUsers:  map[string]vonage.User{},
	}
}

func (f *fakeAPI) GetConversation(_ context.Context, cid string) (vonage.Conversation, error) {
	c, ok := f.conversations[cid]
	if !ok {
		return vonage.Conversation{}, &vonage.APIError{Method: "GET", Path: "/conversations/" + cid, StatusCode: 404, Status: "404 Not Found"}
	}
	return c, nil
}

func (f *fakeAPI) ListMembers(_ context.Context, cid string) ([]vonage.Member, error) {
	return f.members[cid], nil
}

func (f *fakeAPI) CreateMember(_ context.Context, cid string, req vonage.MemberRequest) (string, error) {
	f.nextID++
	id := fmt.Sprintf("MEM-%d", f.nextID)
	f.created = append(f.created, req)
	m := vonage.Member{ID: id, State: req.State}
	m.Embedded.User = vonage.User{ID: req.User.ID, Name: req.User.Name}
	f.members[cid] = append(f.members[cid], m)
	return id, nil
}

func (f *fakeAPI) SendEvent(_ context.Context, _ string, event vonage.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAPI) UpdateUser(_ context.Context, id string, user vonage.User) error {
	f.updatedUsers[id] = user
	return nil
}

func (f *fakeAPI) DeleteConversation(_ context.Context, cid string) error {
	f.deleted = append(f.deleted, cid)
	return nil
}

func (f *fakeAPI) DeleteUser(_ context.Context, id string) error {
	f.deletedUsers = append(f.deletedUsers, id)
	return nil
}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, e := range f.events {
		if b, ok := e.Body.(vonage.TextBody); ok {
			out = append(out, b.Text)
		}
	}
	return out
}
