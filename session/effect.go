package session

import (
	"github.com/pion/webrtc/v4"

	"telecall/media"
	"telecall/negotiation"
)

// Effect is an action the Coordinator performs after a transition.
type Effect interface {
	effect()
}

// NavigateReason says why the session leaves the call screen.
type NavigateReason string

// Navigation reasons
const (
	NavigateLeave    NavigateReason = "leave"
	NavigateRoomFull NavigateReason = "room-full"
)

// Media and signaling effects.
type (
	AcquireMedia     struct{}
	ReleaseMedia     struct{}
	ClearRemoteMedia struct{}
	RenderTrack      struct{ Track media.RemoteTrack }
	SetTrackEnabled  struct {
		Kind    webrtc.RTPCodecType
		Enabled bool
	}
	ConnectSignaling    struct{}
	DisconnectSignaling struct{}
	JoinRoom            struct {
		AppointmentID string
		RoomID        string
	}
	// ListenSignaling starts delivering signaling messages as events.
	ListenSignaling struct{}
	SendReady       struct{}
	SendCandidate   struct{ Candidate webrtc.ICECandidateInit }
	StartLog        struct {
		AppointmentID string
		RoomID        string
	}
	EndLog   struct{ LogID string }
	Navigate struct{ Reason NavigateReason }
)

// Peer connection effects. Effects tagged with a generation are skipped
// when that generation is no longer live.
type (
	CreatePeer struct {
		Gen    uint64
		Polite bool
	}
	ClosePeer struct{}
	Offer     struct {
		Gen  uint64
		Gate negotiation.Gate
	}
	ApplyOffer struct {
		Gen         uint64
		Description webrtc.SessionDescription
	}
	ApplyAnswer struct {
		Gen         uint64
		Description webrtc.SessionDescription
	}
	ApplyCandidate struct {
		Gen       uint64
		Candidate webrtc.ICECandidateInit
	}
	ScheduleRetry struct{ Gen uint64 }
	ResetRetry    struct{}
)

func (AcquireMedia) effect()        {}
func (ReleaseMedia) effect()        {}
func (ClearRemoteMedia) effect()    {}
func (RenderTrack) effect()         {}
func (SetTrackEnabled) effect()     {}
func (ConnectSignaling) effect()    {}
func (DisconnectSignaling) effect() {}
func (JoinRoom) effect()            {}
func (ListenSignaling) effect()     {}
func (SendReady) effect()           {}
func (SendCandidate) effect()       {}
func (StartLog) effect()            {}
func (EndLog) effect()              {}
func (Navigate) effect()            {}
func (CreatePeer) effect()          {}
func (ClosePeer) effect()           {}
func (Offer) effect()               {}
func (ApplyOffer) effect()          {}
func (ApplyAnswer) effect()         {}
func (ApplyCandidate) effect()      {}
func (ScheduleRetry) effect()       {}
func (ResetRetry) effect()          {}
