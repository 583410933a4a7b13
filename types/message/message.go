// Package message provides data types for signaling messages exchanged
// between call clients and the relay.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Type is the kind of signaling message.
type Type string

// Constants for message types
const (
	JoinRoom          Type = "joinRoom"
	Joined            Type = "joined"
	Error             Type = "error"
	Ready             Type = "ready"
	ParticipantJoined Type = "participantJoined"
	ParticipantLeft   Type = "participantLeft"
	RoleChanged       Type = "roleChanged"
	RoomUpdate        Type = "roomUpdate"
	RoomFull          Type = "roomFull"
	Offer             Type = "offer"
	Answer            Type = "answer"
	ICECandidate      Type = "iceCandidate"
	Leave             Type = "leave"
)

// IsRelayed reports whether messages of this type are forwarded from one
// participant to the other.
func (t Type) IsRelayed() bool {
	switch t {
	case Ready, Offer, Answer, ICECandidate:
		return true
	default:
		return false
	}
}

// Envelope is the frame every message travels in. RequestID correlates a
// request with its acknowledgement, From carries the sender's connection id.
type Envelope struct {
	RequestID string          `json:"request_id,omitempty"`
	Type      Type            `json:"type"`
	From      string          `json:"from,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope with the given payload. A nil payload is omitted.
func New(typ Type, payload any) (Envelope, error) {
	env := Envelope{Type: typ}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	env.Payload = raw
	return env, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("empty %s payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}

// Role is the participant's role in the consultation.
type Role string

// Participant roles
const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Negotiation roles carried by RoleChanged.
const (
	NegotiationInitiator = "initiator"
	NegotiationPolite    = "polite"
)

// Error codes carried by ErrorPayload.
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRoomFull     = "ROOM_FULL"
	CodeInternal     = "INTERNAL"
)

// Participant identifies one member of a room.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Role         Role   `json:"role"`
	IsInitiator  bool   `json:"isInitiator"`
}

// JoinRoomRequest is the payload of JoinRoom.
type JoinRoomRequest struct {
	AppointmentID string `json:"appointmentId"`
	RoomID        string `json:"roomId"`
}

// JoinedPayload acknowledges a successful JoinRoom. Participants lists the
// members already present, the joiner included.
type JoinedPayload struct {
	ConnectionID     string        `json:"connectionId"`
	UserID           string        `json:"userId"`
	Role             Role          `json:"role"`
	IsInitiator      bool          `json:"isInitiator"`
	ParticipantCount int           `json:"participantCount"`
	Participants     []Participant `json:"participants"`
	SessionID        string        `json:"sessionId"`
}

// ErrorPayload rejects a request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParticipantLeftPayload announces a departure.
type ParticipantLeftPayload struct {
	ConnectionID string `json:"connectionId"`
	Reason       string `json:"reason"`
	Remaining    int    `json:"remainingParticipants"`
}

// RoleChangedPayload reassigns the receiver's negotiation role.
type RoleChangedPayload struct {
	NewRole     string `json:"newRole"`
	IsInitiator bool   `json:"isInitiator"`
	Reason      string `json:"reason"`
}

// RoomUpdatePayload refreshes occupancy.
type RoomUpdatePayload struct {
	ParticipantCount int `json:"participantCount"`
}

// RoomFullPayload rejects a join because the room is at capacity.
type RoomFullPayload struct {
	Message string `json:"message"`
}

// DescriptionPayload carries an SDP offer or answer.
type DescriptionPayload struct {
	Description webrtc.SessionDescription `json:"description"`
}

// CandidatePayload carries one trickled ICE candidate.
type CandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}
