package rtc

import (
	"context"
	"errors"
	"fmt"

	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/repo"
	"github.com/contactdesk/server/internal/vonage"
)

// ErrUserNotFound is returned by rtc:hangup when the caller has no profile
var ErrUserNotFound = errors.New("User not found")

func (r *Router) onMemberMedia(ctx context.Context, ev Event) error {
	var body MediaBody
	if err := ev.decodeBody(&body); err != nil {
		return err
	}

	user, err := r.users.GetByUsername(ctx, ev.FromUserName())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			r.log.Warn("member:media for unknown user", "user", ev.FromUserName())
			return nil
		}
		return err
	}
	if !body.HasAudio() {
		r.log.Debug("audio not enabled", "user", user.Username)
		return nil
	}
	return r.presence.SetActivity(ctx, user.UserID, model.StatusBusy, model.ActivityInCall)
}

func (r *Router) onRTCHangup(ctx context.Context, ev Event) error {
	user, err := r.users.GetByUsername(ctx, ev.FromUserName())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return r.presence.SetActivity(ctx, user.UserID, model.StatusAvailable, model.ActivityIdle)
}

func (r *Router) onMemberJoined(ctx context.Context, ev Event) error {
	var body MemberBody
	if err := ev.decodeBody(&body); err != nil {
		return err
	}
	if err := body.validate(); err != nil {
		return err
	}

	cid := ev.Conversation()
	ch, ok, err := r.channel(ctx, cid)
	if err != nil || !ok {
		return err
	}
	if !model.IsAgent(body.User.Name) {
		return nil
	}
	// Presence is left alone here; the agent was marked BUSY when claimed.
	return r.bot.SendAgentStateUpdate(ctx, cid, ch, body.Name(), true)
}

func (r *Router) onMemberLeft(ctx context.Context, ev Event) error {
	var body MemberBody
	if err := ev.decodeBody(&body); err != nil {
		return err
	}
	if err := body.validate(); err != nil {
		return err
	}

	cid := ev.Conversation()
	if body.reasonText() == hangupReason {
		r.log.Debug("re-joining member after app hangup", "cid", cid, "user", body.User.Name)
		_, err := r.conv.CreateMember(ctx, cid, vonage.MemberRequest{
			User:    vonage.MemberUser{ID: body.User.ID},
			State:   vonage.MemberJoined,
			Channel: vonage.MemberChannel{Type: "app"},
		})
		if err != nil {
			return fmt.Errorf("re-join member: %w", err)
		}
	}

	ch, ok, err := r.channel(ctx, cid)
	if err != nil || !ok {
		return err
	}
	if !model.IsAgent(body.User.Name) {
		return nil
	}

	msgErr := r.bot.SendAgentStateUpdate(ctx, cid, ch, body.Name(), false)
	if msgErr != nil {
		r.log.Error("error sending agent left message", "cid", cid, "err", msgErr)
	}
	if err := r.presence.SetByUsername(ctx, body.User.Name, model.StatusAvailable, model.AvailabilityAll); err != nil {
		return errors.Join(msgErr, fmt.Errorf("failed to set user free: %w", err))
	}
	return msgErr
}

func (r *Router) onMessage(ctx context.Context, ev Event) error {
	var body MessageBody
	if err := ev.decodeBody(&body); err != nil {
		return err
	}
	if err := body.validate(); err != nil {
		return err
	}

	if !model.IsCustomer(ev.FromUserName()) {
		return nil
	}

	cid := ev.Conversation()
	conversation, err := r.conv.GetConversation(ctx, cid)
	if err != nil {
		return err
	}
	ch, _ := model.ChannelOf(conversation.Name)

	if body.Text == "STOP" && ch == model.ChannelSMS {
		return r.bot.ActionStop(ctx, cid, ev.FromUserID())
	}
	if r.bot.ConversationHasAgents(ctx, cid) {
		return nil
	}

	switch ch {
	case model.ChannelMessenger:
		return r.bot.SendFacebookActionMessage(ctx, cid)
	case model.ChannelWhatsApp:
		return r.bot.SendWhatsappActionMessage(ctx, cid)
	case model.ChannelSMS:
		if body.Text == "CONNECT" {
			return r.bot.ActionConnect(ctx, cid, model.ChannelSMS)
		}
		return r.bot.SendSMSActionMessage(ctx, cid)
	case model.ChannelViber:
		return r.bot.SendBotTextMessage(ctx, cid, r.bot.Messages(model.ChannelViber).Welcome.String())
	default:
		r.log.Debug("conversation name prefix not matched", "cid", cid, "name", conversation.Name)
		return nil
	}
}

func (r *Router) onAppKnocking(ctx context.Context, ev Event) error {
	var body KnockingBody
	if err := ev.decodeBody(&body); err != nil {
		return err
	}
	number := body.callerNumber()
	if number == "" || body.User == nil || body.User.ID == "" {
		return nil
	}
	r.log.Debug("renaming knocking user to caller number", "user_id", body.User.ID)
	return r.conv.UpdateUser(ctx, body.User.ID, vonage.User{Name: number, DisplayName: number})
}

func (r *Router) logOnly(_ context.Context, ev Event) error {
	r.log.Info("event received", "type", ev.Type, "cid", ev.Conversation())
	return nil
}

// channel fetches cid and classifies its name. Unrecognised channels are logged and reported as !ok.
func (r *Router) channel(ctx context.Context, cid string) (model.Channel, bool, error) {
	conversation, err := r.conv.GetConversation(ctx, cid)
	if err != nil {
		return "", false, err
	}
	ch, ok := model.ChannelOf(conversation.Name)
	if !ok {
		r.log.Warn("unsupported channel", "cid", cid, "name", conversation.Name)
	}
	return ch, ok, nil
}
