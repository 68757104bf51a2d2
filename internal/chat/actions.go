// Package chat sends bot messages into customer conversations and routes them to agents.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/vonage"
)

// Conversations is the part of the conversation API the bot uses
type Conversations interface {
	ListMembers(ctx context.Context, cid string) ([]vonage.Member, error)
	CreateMember(ctx context.Context, cid string, req vonage.MemberRequest) (string, error)
	SendEvent(ctx context.Context, cid string, event vonage.Event) error
	DeleteConversation(ctx context.Context, cid string) error
	DeleteUser(ctx context.Context, id string) error
}

// Agents claims and releases agents in the presence store
type Agents interface {
	ClaimAvailableAgent(ctx context.Context, kind model.Availability) (model.AgentClaim, error)
	SetStatusByUsername(ctx context.Context, username string, status model.Status) error
}

// Actions implements the bot side of a customer conversation
type Actions struct {
	conv     Conversations
	agents   Agents
	messages Catalog
	botName  string
	log      *slog.Logger
}

// NewActions creates the bot actions
func NewActions(conv Conversations, agents Agents, messages Catalog, botName string) *Actions {
	return &Actions{
		conv:     conv,
		agents:   agents,
		messages: messages,
		botName:  botName,
		log:      slog.Default().With("component", "chatActions"),
	}
}

// Messages returns the bot copy of ch
func (a *Actions) Messages(ch model.Channel) Messages {
	return a.messages.For(ch)
}

// AddUserToConversation returns the id of name's JOINED member in cid, creating the member if needed
func (a *Actions) AddUserToConversation(ctx context.Context, cid, name string) (string, error) {
	members, err := a.conv.ListMembers(ctx, cid)
	if err != nil {
		return "", fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		if m.Username() == name && m.State == vonage.MemberJoined {
			a.log.Debug("user already in conversation", "user", name, "cid", cid)
			return m.ID, nil
		}
	}

	a.log.Debug("adding user to conversation", "user", name, "cid", cid)
	preanswer := false
	id, err := a.conv.CreateMember(ctx, cid, vonage.MemberRequest{
		User:    vonage.MemberUser{Name: name},
		State:   vonage.MemberJoined,
		Channel: vonage.MemberChannel{Type: "app", Preanswer: &preanswer},
	})
	if err != nil {
		return "", fmt.Errorf("create member: %w", err)
	}
	return id, nil
}

// ConversationHasAgents reports whether an agent is a JOINED member of cid. API errors count as no.
func (a *Actions) ConversationHasAgents(ctx context.Context, cid string) bool {
	members, err := a.conv.ListMembers(ctx, cid)
	if err != nil {
		a.log.Error("conversationHasAgents", "cid", cid, "err", err)
		return false
	}
	for _, m := range members {
		if m.State == vonage.MemberJoined && model.IsAgent(m.Username()) {
			return true
		}
	}
	return false
}

// SendBotTextMessage posts text into cid as the bot user
func (a *Actions) SendBotTextMessage(ctx context.Context, cid, text string) error {
	a.log.Debug("sending text message", "cid", cid)
	botMid, err := a.AddUserToConversation(ctx, cid, a.botName)
	if err != nil {
		return err
	}
	return a.conv.SendEvent(ctx, cid, vonage.NewTextMessage(botMid, text))
}

// SendAgentStateUpdate tells the customer that agentName joined or left
func (a *Actions) SendAgentStateUpdate(ctx context.Context, cid string, ch model.Channel, agentName string, joined bool) error {
	return a.SendBotTextMessage(ctx, cid, a.messages.For(ch).AgentStateText(agentName, joined))
}

// SendFacebookActionMessage sends the connect/none button template
func (a *Actions) SendFacebookActionMessage(ctx context.Context, cid string) error {
	a.log.Debug("sending facebook action message", "cid", cid)
	msgs := a.messages.For(model.ChannelMessenger)
	botMid, err := a.AddUserToConversation(ctx, cid, a.botName)
	if err != nil {
		return err
	}
	custom := map[string]interface{}{
		"attachment": map[string]interface{}{
			"type": "template",
			"payload": map[string]interface{}{
				"template_type": "button",
				"text":          msgs.Welcome.String(),
				"buttons": []map[string]string{
					{"type": "postback", "title": msgs.ActionConnect, "payload": postbackPayload(cid, "connect")},
					{"type": "postback", "title": msgs.ActionNone, "payload": postbackPayload(cid, "none")},
				},
			},
		},
	}
	return a.conv.SendEvent(ctx, cid, vonage.NewCustomMessage(botMid, custom))
}

// SendWhatsappActionMessage sends the connect/none interactive buttons
func (a *Actions) SendWhatsappActionMessage(ctx context.Context, cid string) error {
	a.log.Debug("sending whatsapp action message", "cid", cid)
	msgs := a.messages.For(model.ChannelWhatsApp)
	botMid, err := a.AddUserToConversation(ctx, cid, a.botName)
	if err != nil {
		return err
	}
	custom := map[string]interface{}{
		"type": "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"header": map[string]string{"type": "text", "text": msgs.Welcome.Header},
			"body":   map[string]string{"text": msgs.Welcome.Body},
			"footer": map[string]string{"text": msgs.Welcome.Footer},
			"action": map[string]interface{}{
				"buttons": []map[string]interface{}{
					{"type": "reply", "reply": map[string]string{"id": ReplyConnect + ":" + cid, "title": msgs.ActionConnect}},
					{"type": "reply", "reply": map[string]string{"id": ReplyNone + ":" + cid, "title": msgs.ActionNone}},
				},
			},
		},
	}
	return a.conv.SendEvent(ctx, cid, vonage.NewCustomMessage(botMid, custom))
}

// SendSMSActionMessage sends the sms menu
func (a *Actions) SendSMSActionMessage(ctx context.Context, cid string) error {
	msgs := a.messages.For(model.ChannelSMS)
	return a.SendBotTextMessage(ctx, cid, msgs.Welcome.String()+"\n"+msgs.ActionConnect+"\n"+msgs.ActionStop)
}

// ActionConnect routes cid to an available chat agent. With no agent free the customer gets an
// apology and presence is left untouched.
func (a *Actions) ActionConnect(ctx context.Context, cid string, ch model.Channel) error {
	if a.ConversationHasAgents(ctx, cid) {
		return nil
	}

	a.log.Debug("finding agent", "cid", cid)
	agent, err := a.agents.ClaimAvailableAgent(ctx, model.AvailabilityChat)
	if err != nil {
		if !errors.Is(err, repo.ErrNoAgentAvailable) {
			a.log.Error("error claiming agent", "cid", cid, "err", err)
		}
		return a.SendBotTextMessage(ctx, cid, a.messages.For(ch).NoAvailableAgents)
	}

	if _, err := a.AddUserToConversation(ctx, cid, agent.Username); err != nil {
		if relErr := a.agents.SetStatusByUsername(ctx, agent.Username, model.StatusAvailable); relErr != nil {
			a.log.Error("error releasing agent", "agent", agent.Username, "err", relErr)
		}
		return fmt.Errorf("add agent %s: %w", agent.Username, err)
	}
	a.log.Info("agent connected", "cid", cid, "agent", agent.Username)
	return nil
}

// ActionNone thanks the customer
func (a *Actions) ActionNone(ctx context.Context, cid string, ch model.Channel) error {
	a.log.Debug("sending action none response", "cid", cid)
	return a.SendBotTextMessage(ctx, cid, a.messages.For(ch).ActionNoneResponse)
}

// ActionStop confirms an sms STOP and removes the conversation and the customer user
func (a *Actions) ActionStop(ctx context.Context, cid, userID string) error {
	a.log.Debug("received STOP command via SMS", "cid", cid)
	if err := a.SendBotTextMessage(ctx, cid, a.messages.For(model.ChannelSMS).ActionStopResponse); err != nil {
		return err
	}
	if err := a.conv.DeleteConversation(ctx, cid); err != nil {
		a.log.Error("error deleting conversation", "cid", cid, "err", err)
		return nil
	}
	if err := a.conv.DeleteUser(ctx, userID); err != nil {
		a.log.Error("error deleting user", "user_id", userID, "err", err)
	}
	return nil
}

// Reply ids of the WhatsApp buttons, suffixed with ":<cid>"
const (
	ReplyConnect = "connect-agent"
	ReplyNone    = "none"
)

// Postback is the payload of a Messenger button
type Postback struct {
	CID    string `json:"cid"`
	Action string `json:"action"`
}

func postbackPayload(cid, action string) string {
	b, _ := json.Marshal(Postback{CID: cid, Action: action})
	return string(b)
}
