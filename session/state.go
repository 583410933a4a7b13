// Package session drives one consultation call. Transition is the pure
// lifecycle state machine; Coordinator runs it against real media,
// signaling and peer connections.
package session

import (
	"telecall/negotiation"
	"telecall/types/message"
)

// ConnectionState is the coarse lifecycle state of a session.
type ConnectionState string

// Connection states
const (
	StateInitializing   ConnectionState = "initializing"
	StateAcquiringMedia ConnectionState = "acquiring-media"
	StateMediaReady     ConnectionState = "media-ready"
	StateJoining        ConnectionState = "joining"
	StateWaitingForPeer ConnectionState = "waiting-for-peer"
	StateNegotiating    ConnectionState = "negotiating"
	StateConnected      ConnectionState = "connected"
	StateDisconnected   ConnectionState = "disconnected"
	StateFailed         ConnectionState = "failed"
	StateReconnecting   ConnectionState = "reconnecting"
	StateEnded          ConnectionState = "ended"
)

// Status lines shown to the user.
const (
	StatusAcquiring    = "Getting camera & mic…"
	StatusJoining      = "Joining room…"
	StatusWaiting      = "Waiting for peer…"
	StatusNegotiating  = "Negotiating…"
	StatusOfferSent    = "Offer sent…"
	StatusAnswerSent   = "Answer sent…"
	StatusConnected    = "Connected"
	StatusFailed       = "Connection failed"
	StatusReconnecting = "Reconnecting…"
	StatusHost         = "Peer disconnected — You are now the host"
	StatusEnded        = "Call ended"
	StatusRoomFull     = "Room is full"
)

// Participant is one side of the call.
type Participant struct {
	ConnectionID string
	UserID       string
	Role         message.Role
	IsInitiator  bool
}

func participantFrom(p message.Participant) *Participant {
	return &Participant{
		ConnectionID: p.ConnectionID,
		UserID:       p.UserID,
		Role:         p.Role,
		IsInitiator:  p.IsInitiator,
	}
}

// State is the call session aggregate. Participants are replaced, never
// mutated, so copies of a State can be kept safely.
type State struct {
	AppointmentID string
	RoomID        string

	Conn             ConnectionState
	Local            *Participant
	Remote           *Participant
	ParticipantCount int

	Ready              negotiation.Readiness
	SignalingConnected bool

	// PeerGen is the generation of the live peer connection, 0 for none.
	PeerGen uint64
	// LastGen is the last generation handed out.
	LastGen uint64

	LogID        string
	Status       string
	AudioEnabled bool
	VideoEnabled bool
}

// NewState returns the initial state of a session.
func NewState(appointmentID, roomID string) State {
	return State{
		AppointmentID: appointmentID,
		RoomID:        roomID,
		Conn:          StateInitializing,
		AudioEnabled:  true,
		VideoEnabled:  true,
	}
}

// Initiator reports whether the local participant makes offers.
func (s State) Initiator() bool {
	return s.Local != nil && s.Local.IsInitiator
}

// Gate returns the session-level offer precondition.
func (s State) Gate() negotiation.Gate {
	return negotiation.Gate{
		Initiator:          s.Initiator(),
		SignalingConnected: s.SignalingConnected,
		Ready:              s.Ready,
	}
}

// self reports whether connectionID is the local connection.
func (s State) self(connectionID string) bool {
	return s.Local != nil && connectionID != "" && connectionID == s.Local.ConnectionID
}
