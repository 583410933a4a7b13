// Package peer wraps a WebRTC peer connection behind the narrow interface
// the negotiation layer drives.
package peer

import (
	"github.com/pion/webrtc/v4"

	"telecall/media"
)

// Handlers receive the callbacks of one connection. After Close returns no
// handler is invoked again.
type Handlers struct {
	OnICECandidate          func(webrtc.ICECandidateInit)
	OnConnectionStateChange func(webrtc.PeerConnectionState)
	OnTrack                 func(media.RemoteTrack)
}

// Peer is one peer connection.
type Peer interface {
	SignalingState() webrtc.SignalingState
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	RemoteDescription() *webrtc.SessionDescription
	AddICECandidate(c webrtc.ICECandidateInit) error
	Close() error
}

// Factory creates peers with the local tracks bound in. Kinds without a
// local track are still requested as receive-only.
type Factory interface {
	New(h Handlers, tracks []webrtc.TrackLocal) (Peer, error)
}
