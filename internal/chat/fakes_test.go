package chat

import (
	"context"
	"fmt"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/vonage"
)

type sentEvent struct {
	cid   string
	event vonage.Event
}

type fakeConversations struct {
	members     map[string][]vonage.Member
	events      []sentEvent
	deleted     []string
	deletedUser []string
	listErr     error
	createErr   error
	nextID      int
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{members: map[string][]vonage.Member{}}
}

func member(id, name, state string) vonage.Member {
	m := vonage.Member{ID: id, State: state}
	m.Embedded.User.Name = name
	return m
}

func (f *fakeConversations) ListMembers(_ context.Context, cid string) ([]vonage.Member, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.members[cid], nil
}

func (f *fakeConversations) CreateMember(_ context.Context, cid string, req vonage.MemberRequest) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("MEM-%d", f.nextID)
	f.members[cid] = append(f.members[cid], member(id, req.User.Name, req.State))
	return id, nil
}

func (f *fakeConversations) SendEvent(_ context.Context, cid string, event vonage.Event) error {
	f.events = append(f.events, sentEvent{cid, event})
	return nil
}

func (f *fakeConversations) DeleteConversation(_ context.Context, cid string) error {
	f.deleted = append(f.deleted, cid)
	return nil
}

func (f *fakeConversations) DeleteUser(_ context.Context, id string) error {
	f.deletedUser = append(f.deletedUser, id)
	return nil
}

func (f *fakeConversations) texts() []string {
	var out []string
	for _, e := range f.events {
		if body, ok := e.event.Body.(vonage.TextBody); ok {
			out = append(out, body.Text)
		}
	}
	return out
}

type fakeAgents struct {
	available []model.AgentClaim
	claimErr  error
	claims    int
	statuses  map[string]model.Status
}

func (f *fakeAgents) ClaimAvailableAgent(_ context.Context, kind model.Availability) (model.AgentClaim, error) {
	f.claims++
	if f.claimErr != nil {
		return model.AgentClaim{}, f.claimErr
	}
	if len(f.available) == 0 {
		return model.AgentClaim{}, repo.ErrNoAgentAvailable
	}
	agent := f.available[0]
	f.available = f.available[1:]
	f.setStatus(agent.Username, model.StatusBusy)
	return agent, nil
}

func (f *fakeAgents) SetStatusByUsername(_ context.Context, username string, status model.Status) error {
	f.setStatus(username, status)
	return nil
}

func (f *fakeAgents) setStatus(username string, status model.Status) {
	if f.statuses == nil {
		f.statuses = map[string]model.Status{}
	}
	f.statuses[username] = status
}
