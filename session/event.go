package session

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"telecall/media"
	"telecall/negotiation"
	"telecall/types/message"
)

// Event is an input of the session state machine.
type Event interface {
	event()
}

// Lifecycle and I/O results.
type (
	Mount              struct{}
	Unmount            struct{}
	Leave              struct{}
	MediaAcquired      struct{}
	MediaFailed        struct{ Err error }
	SignalingConnected struct{}
	SignalingFailed    struct{ Err error }
	SignalingLost      struct{}
	Joined             struct{ Ack message.JoinedPayload }
	JoinFailed         struct{ Err error }
	LogStarted         struct{ ID string }
	ToggleTrack        struct {
		Kind    webrtc.RTPCodecType
		Enabled bool
	}
)

// Signaling events.
type (
	RoomFull   struct{ Message string }
	PeerJoined struct{ Participant message.Participant }
	PeerReady  struct{ From string }
	PeerLeft   struct {
		ConnectionID string
		Remaining    int
	}
	RoleChanged struct {
		IsInitiator bool
		Reason      string
	}
	RoomUpdate  struct{ Count int }
	RemoteOffer struct {
		From        string
		Description webrtc.SessionDescription
	}
	RemoteAnswer struct {
		From        string
		Description webrtc.SessionDescription
	}
	RemoteCandidate struct {
		From      string
		Candidate webrtc.ICECandidateInit
	}
)

// Peer connection events, tagged with the generation they came from.
type (
	LocalCandidate struct {
		Gen       uint64
		Candidate webrtc.ICECandidateInit
	}
	RemoteTrack struct {
		Gen   uint64
		Track media.RemoteTrack
	}
	TransportState struct {
		Gen   uint64
		State webrtc.PeerConnectionState
	}
	Negotiated struct {
		Gen     uint64
		Outcome negotiation.Outcome
		Err     error
	}
	// OfferYielded carries a colliding offer the polite side must answer on
	// a replacement connection.
	OfferYielded struct {
		Gen         uint64
		Description webrtc.SessionDescription
	}
	RetryFired     struct{ Gen uint64 }
	RetryExhausted struct{ Gen uint64 }
)

func (Mount) event()              {}
func (Unmount) event()            {}
func (Leave) event()              {}
func (MediaAcquired) event()      {}
func (MediaFailed) event()        {}
func (SignalingConnected) event() {}
func (SignalingFailed) event()    {}
func (SignalingLost) event()      {}
func (Joined) event()             {}
func (JoinFailed) event()         {}
func (LogStarted) event()         {}
func (ToggleTrack) event()        {}
func (RoomFull) event()           {}
func (PeerJoined) event()         {}
func (PeerReady) event()          {}
func (PeerLeft) event()           {}
func (RoleChanged) event()        {}
func (RoomUpdate) event()         {}
func (RemoteOffer) event()        {}
func (RemoteAnswer) event()       {}
func (RemoteCandidate) event()    {}
func (LocalCandidate) event()     {}
func (RemoteTrack) event()        {}
func (TransportState) event()     {}
func (Negotiated) event()         {}
func (OfferYielded) event()       {}
func (RetryFired) event()         {}
func (RetryExhausted) event()     {}

// FromEnvelope converts a signaling message into an event. Messages that
// carry nothing for the session return nil.
func FromEnvelope(env message.Envelope) (Event, error) {
	switch env.Type {
	case message.Ready:
		return PeerReady{From: env.From}, nil
	case message.ParticipantJoined:
		var p message.Participant
		if err := env.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return PeerJoined{Participant: p}, nil
	case message.ParticipantLeft:
		var p message.ParticipantLeftPayload
		if err := env.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return PeerLeft{ConnectionID: p.ConnectionID, Remaining: p.Remaining}, nil
	case message.RoleChanged:
		var p message.RoleChangedPayload
		if err := env.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return RoleChanged{IsInitiator: p.IsInitiator, Reason: p.Reason}, nil
	case message.RoomUpdate:
		var p message.RoomUpdatePayload
		if err := env.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return RoomUpdate{Count: p.ParticipantCount}, nil
	case message.RoomFull:
		var p message.RoomFullPayload
		_ = env.Decode(&p)
		return RoomFull{Message: p.Message}, nil
	case message.Offer, message.Answer:
		var p message.DescriptionPayload
		if err := env.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		if env.Type == message.Offer {
			return RemoteOffer{From: env.From, Description: p.Description}, nil
		}
		return RemoteAnswer{From: env.From, Description: p.Description}, nil
	case message.ICECandidate:
		var p message.CandidatePayload
		if err := env.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", env.Type, err)
		}
		return RemoteCandidate{From: env.From, Candidate: p.Candidate}, nil
	case message.Error:
		var p message.ErrorPayload
		_ = env.Decode(&p)
		return nil, fmt.Errorf("relay error %s: %s", p.Code, p.Message)
	default:
		return nil, nil
	}
}
