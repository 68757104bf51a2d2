package model

import "strings"

// Role tags a participant of a conversation
type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
	RoleBot      Role = "bot"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleCustomer, RoleBot:
		return true
	}
	return false
}

// CustomerMarker separates the channel from the sender id in customer usernames
const CustomerMarker = ":customer:"

// RoleOf classifies a vendor username. Customer users are created as
// "<channel>:customer:<id>" and bots are named "bot:<name>"; anybody else is an agent.
func RoleOf(username string) Role {
	switch {
	case strings.Contains(username, CustomerMarker):
		return RoleCustomer
	case strings.Contains(username, "bot:"):
		return RoleBot
	default:
		return RoleAgent
	}
}

// IsCustomer reports whether username names a customer user
func IsCustomer(username string) bool { return RoleOf(username) == RoleCustomer }

// IsBot reports whether username names a bot user
func IsBot(username string) bool { return RoleOf(username) == RoleBot }

// IsAgent reports whether username names an agent
func IsAgent(username string) bool { return RoleOf(username) == RoleAgent }

// Channel is the messaging channel a conversation was opened on
type Channel string

const (
	ChannelMessenger Channel = "messenger"
	ChannelWhatsApp  Channel = "whatsapp"
	ChannelSMS       Channel = "sms"
	ChannelViber     Channel = "viber_service"
)

// ChannelOf returns the channel encoded as the prefix of a conversation name
// ("whatsapp:conversation:123" -> whatsapp) and whether it is a recognised one.
func ChannelOf(conversationName string) (Channel, bool) {
	prefix, _, _ := strings.Cut(conversationName, ":")
	ch := Channel(prefix)
	switch ch {
	case ChannelMessenger, ChannelWhatsApp, ChannelSMS, ChannelViber:
		return ch, true
	}
	return ch, false
}
