// Package peertest provides an in-memory peer connection that follows the
// offer/answer signaling state rules without any network.
package peertest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"

	"telecall/peer"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("peer closed")

// ErrInvalidState is returned for a description that is not valid in the
// current signaling state.
var ErrInvalidState = errors.New("invalid signaling state")

// Peer is a fake peer.Peer. When AutoConnect is set it reports connected
// and emits one local candidate once an offer/answer exchange completes.
type Peer struct {
	ID          int
	AutoConnect bool

	// BeforeCreateOffer runs inside CreateOffer, before the state is read.
	BeforeCreateOffer func()
	// FailCreateOffer makes CreateOffer fail.
	FailCreateOffer error

	mu         sync.Mutex
	handlers   peer.Handlers
	state      webrtc.SignalingState
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool
	connected  bool

	offers  atomic.Int32
	answers atomic.Int32
}

// NewPeer creates a fake peer in the stable state.
func NewPeer(id int, h peer.Handlers) *Peer {
	return &Peer{ID: id, handlers: h, state: webrtc.SignalingStateStable}
}

// SignalingState implements peer.Peer.
func (p *Peer) SignalingState() webrtc.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CreateOffer implements peer.Peer.
func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	if p.BeforeCreateOffer != nil {
		p.BeforeCreateOffer()
	}
	if p.FailCreateOffer != nil {
		return webrtc.SessionDescription{}, p.FailCreateOffer
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return webrtc.SessionDescription{}, ErrClosed
	}
	n := p.offers.Add(1)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d-%d", p.ID, n)}, nil
}

// CreateAnswer implements peer.Peer.
func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return webrtc.SessionDescription{}, ErrClosed
	}
	if p.state != webrtc.SignalingStateHaveRemoteOffer {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer in %s: %w", p.state, ErrInvalidState)
	}
	n := p.answers.Add(1)
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d-%d", p.ID, n)}, nil
}

// SetLocalDescription implements peer.Peer. Like pion, rollback
// descriptions are rejected.
func (p *Peer) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	switch {
	case desc.Type == webrtc.SDPTypeOffer && p.state == webrtc.SignalingStateStable:
		p.state = webrtc.SignalingStateHaveLocalOffer
	case desc.Type == webrtc.SDPTypeAnswer && p.state == webrtc.SignalingStateHaveRemoteOffer:
		p.state = webrtc.SignalingStateStable
	default:
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("set local %s in %s: %w", desc.Type, state, ErrInvalidState)
	}
	p.local = &desc
	negotiated := desc.Type == webrtc.SDPTypeAnswer
	p.mu.Unlock()

	if negotiated {
		p.negotiated()
	}
	return nil
}

// SetRemoteDescription implements peer.Peer. Like pion, it does not roll
// back implicitly: an offer in have-local-offer fails.
func (p *Peer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	switch {
	case desc.Type == webrtc.SDPTypeOffer && p.state == webrtc.SignalingStateStable:
		p.state = webrtc.SignalingStateHaveRemoteOffer
	case desc.Type == webrtc.SDPTypeAnswer && p.state == webrtc.SignalingStateHaveLocalOffer:
		p.state = webrtc.SignalingStateStable
	default:
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("set remote %s in %s: %w", desc.Type, state, ErrInvalidState)
	}
	p.remote = &desc
	negotiated := desc.Type == webrtc.SDPTypeAnswer
	p.mu.Unlock()

	if negotiated {
		p.negotiated()
	}
	return nil
}

// RemoteDescription implements peer.Peer.
func (p *Peer) RemoteDescription() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return nil
	}
	desc := *p.remote
	return &desc
}

// AddICECandidate implements peer.Peer.
func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

// Close implements peer.Peer.
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Fire reports a connection state change unless the peer is closed. It
// returns whether the handler ran.
func (p *Peer) Fire(s webrtc.PeerConnectionState) bool {
	p.mu.Lock()
	closed := p.closed
	h := p.handlers.OnConnectionStateChange
	p.mu.Unlock()
	if closed || h == nil {
		return false
	}
	h(s)
	return true
}

// EmitCandidate reports a local candidate unless the peer is closed.
func (p *Peer) EmitCandidate(c webrtc.ICECandidateInit) bool {
	p.mu.Lock()
	closed := p.closed
	h := p.handlers.OnICECandidate
	p.mu.Unlock()
	if closed || h == nil {
		return false
	}
	h(c)
	return true
}

func (p *Peer) negotiated() {
	p.mu.Lock()
	if !p.AutoConnect || p.connected {
		p.mu.Unlock()
		return
	}
	p.connected = true
	p.mu.Unlock()

	go func() {
		mid := "0"
		p.EmitCandidate(webrtc.ICECandidateInit{
			Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 127.0.0.1 5000 typ host", p.ID),
			SDPMid:    &mid,
		})
		p.Fire(webrtc.PeerConnectionStateConnected)
	}()
}

// Offers returns the number of offers created.
func (p *Peer) Offers() int { return int(p.offers.Load()) }

// Answers returns the number of answers created.
func (p *Peer) Answers() int { return int(p.answers.Load()) }

// Candidates returns the remote candidates applied.
func (p *Peer) Candidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

// Local returns the current local description.
func (p *Peer) Local() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

// Closed reports whether Close was called.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Factory is a peer.Factory recording every peer it creates.
type Factory struct {
	AutoConnect bool
	Err         error

	mu    sync.Mutex
	peers []*Peer
}

// New implements peer.Factory.
func (f *Factory) New(h peer.Handlers, _ []webrtc.TrackLocal) (peer.Peer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p := NewPeer(len(f.peers)+1, h)
	p.AutoConnect = f.AutoConnect
	f.peers = append(f.peers, p)
	return p, nil
}

// Peers returns every peer created so far.
func (f *Factory) Peers() []*Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Peer(nil), f.peers...)
}

// Last returns the most recent peer, or nil.
func (f *Factory) Last() *Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.peers) == 0 {
		return nil
	}
	return f.peers[len(f.peers)-1]
}
