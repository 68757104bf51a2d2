package model

import (
	"time"

	"github.com/google/uuid"
)

// UserProfile is an application user known to both the datastore and the vendor backend.
// Username is the vendor user name (the account e-mail for agents).
type UserProfile struct {
	UserID       uuid.UUID
	Username     string
	DisplayName  string
	Role         Role
	VonageUserID *string
	CreatedAt    time.Time
}

// Device represents a physical device paired to a user
type Device struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	DeviceName string
	CreatedAt  time.Time
}

// DeviceCode is a short-lived pairing code. Only the hash is ever stored.
type DeviceCode struct {
	DeviceID   uuid.UUID
	CodeHash   string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Status is the presence status of a user
type Status string

const (
	StatusAvailable    Status = "AVAILABLE"
	StatusOffline      Status = "OFFLINE"
	StatusBusy         Status = "BUSY"
	StatusDoNotDisturb Status = "DO_NOT_DISTURB"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOffline, StatusBusy, StatusDoNotDisturb:
		return true
	}
	return false
}

// Availability is the kind of work a user accepts
type Availability string

const (
	AvailabilityVoice Availability = "VOICE"
	AvailabilityChat  Availability = "CHAT"
	AvailabilityAll   Availability = "ALL"
)

// Valid reports whether a is one of the known availabilities
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityVoice, AvailabilityChat, AvailabilityAll:
		return true
	}
	return false
}

// Activity describes what an agent is doing right now
type Activity string

const (
	ActivityIdle   Activity = "IDLE"
	ActivityInCall Activity = "IN-CALL"
)

// Presence is the (status, availability) tuple of a user
type Presence struct {
	UserID       uuid.UUID
	DeviceID     *uuid.UUID
	Status       Status
	Availability Availability
	Activity     Activity
	UpdatedAt    time.Time
}

// AgentClaim is returned when an available agent was atomically marked busy
type AgentClaim struct {
	UserID       uuid.UUID
	Username     string
	DisplayName  string
	Availability Availability
}

// Name returns the display name, falling back to the username
func (c AgentClaim) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Username
}
