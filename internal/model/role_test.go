package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleOf(t *testing.T) {
	cases := []struct {
		username string
		want     Role
	}{
		{"abc:customer:1", RoleCustomer},
		{"whatsapp:customer:447700900000", RoleCustomer},
		{"bot:vonage", RoleBot},
		{"agent42", RoleAgent},
		{"jane@example.com", RoleAgent},
		{"", RoleAgent},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoleOf(tc.username), tc.username)
	}
}

func TestIsAgent(t *testing.T) {
	assert.False(t, IsAgent("abc:customer:1"))
	assert.False(t, IsAgent("bot:vonage"))
	assert.True(t, IsAgent("agent42"))
	assert.True(t, IsCustomer("sms:customer:1"))
	assert.True(t, IsBot("bot:helper"))
}

func TestChannelOf(t *testing.T) {
	ch, ok := ChannelOf("whatsapp:conversation:123")
	assert.True(t, ok)
	assert.Equal(t, ChannelWhatsApp, ch)

	ch, ok = ChannelOf("viber_service:conversation:9")
	assert.True(t, ok)
	assert.Equal(t, ChannelViber, ch)

	_, ok = ChannelOf("CON-1234")
	assert.False(t, ok)

	_, ok = ChannelOf("")
	assert.False(t, ok)
}

func TestStatusAndAvailabilityValid(t *testing.T) {
	assert.True(t, StatusDoNotDisturb.Valid())
	assert.False(t, Status("AWAY").Valid())
	assert.True(t, AvailabilityAll.Valid())
	assert.False(t, Availability("SMS").Valid())
}
