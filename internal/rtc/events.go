package rtc

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/contactdesk/server/internal/validate"
)

// Event types handled by the router
const (
	TypeMemberMedia         = "member:media"
	TypeRTCHangup           = "rtc:hangup"
	TypeMessage             = "message"
	TypeMemberJoined        = "member:joined"
	TypeMemberLeft          = "member:left"
	TypeMemberInvited       = "member:invited"
	TypeConversationCreated = "conversation:created"
	TypeConversationDeleted = "conversation:deleted"
	TypeAppKnocking         = "app:knocking"
)

// hangupReason is the member:left reason of a client that dropped its leg
const hangupReason = "app:user:hangup"

// EmbeddedUser is the acting user of an event
type EmbeddedUser struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Event is the common envelope of every conversation webhook
type Event struct {
	Type           string          `json:"type"`
	ID             json.RawMessage `json:"id,omitempty"`
	ApplicationID  string          `json:"application_id,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
	CID            string          `json:"cid,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	From           string          `json:"from,omitempty"`
	Body           json.RawMessage `json:"body,omitempty"`
	Embedded       struct {
		FromUser   *EmbeddedUser `json:"from_user,omitempty"`
		FromMember *struct {
			ID string `json:"id"`
		} `json:"from_member,omitempty"`
	} `json:"_embedded"`
}

// Parse validates the envelope of a raw webhook body
func Parse(raw []byte) (Event, error) {
	var ev Event
	if err := validate.DecodeJSON(bytes.NewReader(raw), &ev); err != nil {
		return Event{}, err
	}
	v := validate.New()
	v.Required("type", ev.Type)
	if err := v.Err(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Conversation returns the conversation id, whichever field carries it
func (e Event) Conversation() string {
	if e.CID != "" {
		return e.CID
	}
	return e.ConversationID
}

// FromUserName returns the acting user's name, or ""
func (e Event) FromUserName() string {
	if e.Embedded.FromUser == nil {
		return ""
	}
	return e.Embedded.FromUser.Name
}

// FromUserID returns the acting user's id, or ""
func (e Event) FromUserID() string {
	if e.Embedded.FromUser == nil {
		return ""
	}
	return e.Embedded.FromUser.ID
}

// DeliveryKey identifies one delivery of an event. Events without an id have no key.
func (e Event) DeliveryKey() string {
	id := strings.Trim(strings.TrimSpace(string(e.ID)), `"`)
	if id == "" || id == "null" {
		return ""
	}
	return e.Type + ":" + e.Conversation() + ":" + id
}

func (e Event) decodeBody(dst interface{}) error {
	if len(e.Body) == 0 || string(e.Body) == "null" {
		return nil
	}
	return validate.DecodeJSON(bytes.NewReader(e.Body), dst)
}

// ChannelEndpoint is one side of a member's channel
type ChannelEndpoint struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

// Channel describes a member's leg
type Channel struct {
	Type string           `json:"type"`
	From *ChannelEndpoint `json:"from,omitempty"`
	To   *ChannelEndpoint `json:"to,omitempty"`
}

// MediaBody is the body of member:media
type MediaBody struct {
	Media *struct {
		Audio bool `json:"audio"`
	} `json:"media,omitempty"`
}

// HasAudio reports whether the media update enables audio
func (b MediaBody) HasAudio() bool {
	return b.Media != nil && b.Media.Audio
}

// MemberBody is the body of member:joined and member:left
type MemberBody struct {
	User     EmbeddedUser `json:"user"`
	MemberID string       `json:"member_id,omitempty"`
	Channel  *Channel     `json:"channel,omitempty"`
	Reason   *struct {
		Text string `json:"text"`
	} `json:"reason,omitempty"`
}

// Name returns the display name, falling back to the username
func (b MemberBody) Name() string {
	if b.User.DisplayName != "" {
		return b.User.DisplayName
	}
	return b.User.Name
}

func (b MemberBody) reasonText() string {
	if b.Reason == nil {
		return ""
	}
	return b.Reason.Text
}

func (b MemberBody) validate() error {
	v := validate.New()
	v.Required("body.user.id", b.User.ID)
	v.Required("body.user.name", b.User.Name)
	return v.Err()
}

// MessageBody is the body of a message event
type MessageBody struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text,omitempty"`
}

func (b MessageBody) validate() error {
	v := validate.New()
	v.Required("body.message_type", b.MessageType)
	v.OneOf("body.message_type", b.MessageType,
		"text", "image", "video", "audio", "file", "vcard", "location", "template", "custom")
	return v.Err()
}

// KnockingBody is the body of app:knocking
type KnockingBody struct {
	User *struct {
		ID string `json:"id"`
	} `json:"user,omitempty"`
	Channel *Channel `json:"channel,omitempty"`
}

func (b KnockingBody) callerNumber() string {
	if b.Channel == nil || b.Channel.From == nil {
		return ""
	}
	return b.Channel.From.Number
}
