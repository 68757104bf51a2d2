package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/contactdesk/server/internal/chat"
	"github.com/contactdesk/server/internal/messenger"
	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/validate"
	"github.com/contactdesk/server/internal/vonage"
)

const inboundGeo = "us-2"

// VendorUsers looks up and creates users in the conversation backend
type VendorUsers interface {
	GetUser(ctx context.Context, idOrName string) (vonage.User, error)
	CreateUser(ctx context.Context, user vonage.User) (vonage.User, error)
}

// ProfileLookup resolves a Messenger sender to its public profile
type ProfileLookup interface {
	Profile(ctx context.Context, psid string) (messenger.Profile, error)
}

// InboundHandler handles POST /webhook-message-inbound
type InboundHandler struct {
	users    VendorUsers
	profiles ProfileLookup
	bot      BotActions
	log      *slog.Logger
}

// NewInboundHandler creates a new inbound message handler
func NewInboundHandler(users VendorUsers, profiles ProfileLookup, bot BotActions) *InboundHandler {
	return &InboundHandler{
		users:    users,
		profiles: profiles,
		bot:      bot,
		log:      slog.Default().With("component", "webhook-message-inbound"),
	}
}

type inboundMessage struct {
	To          string `json:"to"`
	From        string `json:"from"`
	Channel     string `json:"channel"`
	MessageUUID string `json:"message_uuid"`
	Timestamp   string `json:"timestamp"`
	MessageType string `json:"message_type"`
	Text        string `json:"text,omitempty"`
	Profile     *struct {
		Name string `json:"name"`
	} `json:"profile,omitempty"`
	Reply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply,omitempty"`
}

func (m inboundMessage) validate() error {
	v := validate.New()
	v.Required("to", m.To)
	v.Required("from", m.From)
	v.Required("channel", m.Channel)
	v.Required("message_uuid", m.MessageUUID)
	v.Required("timestamp", m.Timestamp)
	v.Required("message_type", m.MessageType)
	return v.Err()
}

func (m inboundMessage) customerName() string {
	return m.Channel + model.CustomerMarker + m.From
}

type messageAction struct {
	Action           string `json:"action"`
	ConversationName string `json:"conversation_name"`
	User             string `json:"user"`
	Geo              string `json:"geo"`
}

// HandleInbound routes an inbound channel message into its conversation. The vendor gets a 200
// whatever happens.
func (h *InboundHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		h.log.Error("error reading inbound message", "err", err)
		respondText(w, http.StatusOK, "invalid channel")
		return
	}

	var msg inboundMessage
	if err := validate.DecodeJSON(bytes.NewReader(raw), &msg); err == nil {
		err = msg.validate()
	}
	if err != nil {
		h.log.Error("error in inbound message", "err", err)
		respondText(w, http.StatusOK, "invalid channel")
		return
	}

	if err := h.ensureCustomer(r.Context(), msg); err != nil {
		h.log.Error("error in inbound message", "err", err)
		respondText(w, http.StatusOK, "invalid channel")
		return
	}

	switch model.Channel(msg.Channel) {
	case model.ChannelSMS, model.ChannelMessenger:
		h.log.Info("inbound message", "channel", msg.Channel)
		respondJSON(w, http.StatusOK, h.messageActions(msg))
	case model.ChannelWhatsApp:
		h.whatsapp(w, r, msg)
	default:
		h.log.Info("invalid channel", "channel", msg.Channel)
		respondText(w, http.StatusOK, "invalid channel")
	}
}

func (h *InboundHandler) whatsapp(w http.ResponseWriter, r *http.Request, msg inboundMessage) {
	switch msg.MessageType {
	case "text":
		respondJSON(w, http.StatusOK, h.messageActions(msg))
		return
	case "reply":
		if msg.Reply == nil {
			h.log.Warn("whatsapp reply without reply body")
			break
		}
		action, cid, _ := strings.Cut(msg.Reply.ID, ":")
		var err error
		switch action {
		case chat.ReplyConnect:
			err = h.bot.ActionConnect(r.Context(), cid, model.ChannelWhatsApp)
		case chat.ReplyNone:
			err = h.bot.ActionNone(r.Context(), cid, model.ChannelWhatsApp)
		}
		if err != nil {
			h.log.Error("error processing whatsapp message", "action", action, "cid", cid, "err", err)
		}
	default:
		h.log.Info("unhandled whatsapp message type", "message_type", msg.MessageType)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func (h *InboundHandler) messageActions(msg inboundMessage) []messageAction {
	return []messageAction{{
		Action:           "message",
		ConversationName: msg.Channel + ":conversation:" + msg.From,
		User:             msg.customerName(),
		Geo:              inboundGeo,
	}}
}

// ensureCustomer creates the vendor user of the sender on first contact
func (h *InboundHandler) ensureCustomer(ctx context.Context, msg inboundMessage) error {
	name := msg.customerName()
	_, err := h.users.GetUser(ctx, name)
	if err == nil {
		h.log.Debug("customer user already exists", "user", name)
		return nil
	}
	if !vonage.IsNotFound(err) {
		return err
	}

	user := vonage.User{Name: name, DisplayName: name}
	switch model.Channel(msg.Channel) {
	case model.ChannelMessenger:
		profile, err := h.profiles.Profile(ctx, msg.From)
		if err != nil {
			h.log.Error("error getting messenger user details", "psid", msg.From, "err", err)
		} else {
			if profile.Name != "" {
				user.DisplayName = profile.Name
			}
			user.ImageURL = profile.ProfilePic
		}
	case model.ChannelWhatsApp:
		if msg.Profile != nil && msg.Profile.Name != "" {
			user.DisplayName = msg.Profile.Name
		}
	}

	h.log.Debug("creating customer user", "user", name)
	if _, err := h.users.CreateUser(ctx, user); err != nil {
		return err
	}
	return nil
}
