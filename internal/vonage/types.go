package vonage

// Member states
const (
	MemberJoined  = "JOINED"
	MemberInvited = "INVITED"
	MemberLeft    = "LEFT"
)

// User is a vendor user
type User struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Conversation is a vendor conversation. The channel is the name prefix before ':'.
type Conversation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Member is a conversation member as listed by the members endpoint
type Member struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Embedded struct {
		User User `json:"user"`
	} `json:"_embedded"`
}

// Username returns the name of the user behind the member
func (m Member) Username() string { return m.Embedded.User.Name }

type memberList struct {
	Embedded struct {
		Members []Member `json:"members"`
	} `json:"_embedded"`
}

type userList struct {
	Embedded struct {
		Users []User `json:"users"`
	} `json:"_embedded"`
}

// MemberUser identifies the user of a new member by id or name
type MemberUser struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// MemberChannel is the leg type of a new member
type MemberChannel struct {
	Type      string `json:"type"`
	Preanswer *bool  `json:"preanswer,omitempty"`
}

// MemberRequest is the body of a create-member call
type MemberRequest struct {
	User    MemberUser    `json:"user"`
	State   string        `json:"state"`
	Channel MemberChannel `json:"channel"`
}

// Event is a conversation event sent on behalf of a member
type Event struct {
	Type string      `json:"type"`
	From string      `json:"from"`
	Body interface{} `json:"body"`
}

// TextBody is a plain text message body
type TextBody struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

// CustomBody carries a channel specific payload (templates, interactive buttons)
type CustomBody struct {
	MessageType string      `json:"message_type"`
	Custom      interface{} `json:"custom"`
}

// NewTextMessage builds a message event with a text body
func NewTextMessage(from, text string) Event {
	return Event{Type: "message", From: from, Body: TextBody{MessageType: "text", Text: text}}
}

// NewCustomMessage builds a message event with a custom body
func NewCustomMessage(from string, custom interface{}) Event {
	return Event{Type: "message", From: from, Body: CustomBody{MessageType: "custom", Custom: custom}}
}
