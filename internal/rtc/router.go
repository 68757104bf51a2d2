// Package rtc dispatches conversation webhooks to per-type handlers.
package rtc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/chat"
	"github.com/contactdesk/server/internal/dedupe"
	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/validate"
	"github.com/contactdesk/server/internal/vonage"
)

// Users resolves vendor usernames to profiles
type Users interface {
	GetByUsername(ctx context.Context, username string) (model.UserProfile, error)
}

// Presence is the presence store as used by call and member events
type Presence interface {
	SetActivity(ctx context.Context, userID uuid.UUID, status model.Status, activity model.Activity) error
	SetByUsername(ctx context.Context, username string, status model.Status, availability model.Availability) error
}

// Conversations is the part of the conversation API the router calls directly
type Conversations interface {
	GetConversation(ctx context.Context, cid string) (vonage.Conversation, error)
	CreateMember(ctx context.Context, cid string, req vonage.MemberRequest) (string, error)
	UpdateUser(ctx context.Context, id string, user vonage.User) error
}

type handlerFunc func(ctx context.Context, ev Event) error

// Router dispatches events by type
type Router struct {
	users    Users
	presence Presence
	conv     Conversations
	bot      *chat.Actions
	seen     *dedupe.Window
	handlers map[string]handlerFunc
	log      *slog.Logger
}

// NewRouter creates a router. seen may be nil to disable redelivery suppression.
func NewRouter(users Users, presence Presence, conv Conversations, bot *chat.Actions, seen *dedupe.Window) *Router {
	r := &Router{
		users:    users,
		presence: presence,
		conv:     conv,
		bot:      bot,
		seen:     seen,
		log:      slog.Default().With("component", "rtc"),
	}
	r.handlers = map[string]handlerFunc{
		TypeMemberMedia:         r.onMemberMedia,
		TypeRTCHangup:           r.onRTCHangup,
		TypeMessage:             r.onMessage,
		TypeMemberJoined:        r.onMemberJoined,
		TypeMemberLeft:          r.onMemberLeft,
		TypeAppKnocking:         r.onAppKnocking,
		TypeConversationCreated: r.logOnly,
		TypeMemberInvited:       r.logOnly,
		TypeConversationDeleted: r.logOnly,
	}
	return r
}

// Dispatch runs the handler for ev. Unknown types and redeliveries are skipped. A
// *validate.Error means the body did not match its type; any other error is a handler failure.
func (r *Router) Dispatch(ctx context.Context, ev Event) error {
	h, ok := r.handlers[ev.Type]
	if !ok {
		r.log.Info("unsupported event received", "type", ev.Type)
		return nil
	}

	key := ev.DeliveryKey()
	if key != "" && r.seen != nil && r.seen.Seen(key) {
		r.log.Info("duplicate event skipped", "type", ev.Type, "key", key)
		return nil
	}

	err := h(ctx, ev)
	if err != nil {
		if key != "" && r.seen != nil {
			if _, invalid := validate.Issues(err); invalid {
				r.seen.Forget(key)
			}
		}
		r.log.Error("error handling event", "type", ev.Type, "cid", ev.Conversation(), "err", err)
	}
	return err
}
