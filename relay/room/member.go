package room

import (
	"time"

	"telecall/types/message"
)

// Member is one connection joined to a room.
type Member struct {
	ConnectionID  string
	RoomID        string
	AppointmentID string
	SessionID     string
	UserID        string
	Role          message.Role
	IsInitiator   bool
	JoinedAt      time.Time
}

// DeepCopy returns a copy of the member.
func (m *Member) DeepCopy() *Member {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Participant returns the wire representation of the member.
func (m *Member) Participant() message.Participant {
	return message.Participant{
		ConnectionID: m.ConnectionID,
		UserID:       m.UserID,
		Role:         m.Role,
		IsInitiator:  m.IsInitiator,
	}
}
