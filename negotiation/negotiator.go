package negotiation

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"telecall/metric"
	"telecall/peer"
	"telecall/types/message"
)

// Signaler sends negotiation messages to the remote side.
type Signaler interface {
	Send(typ message.Type, payload any) error
}

// Negotiator runs perfect negotiation over a single peer connection. A new
// connection gets a new Negotiator, so its flags never leak across
// connections.
type Negotiator struct {
	peer     peer.Peer
	signaler Signaler
	polite   bool
	logger   *zap.Logger
	metrics  *metric.Metrics

	makingOffer atomic.Bool

	mu          sync.Mutex
	ignoreOffer bool
	pending     []webrtc.ICECandidateInit
}

// New creates a negotiator for p. A polite negotiator yields on offer
// collision, an impolite one keeps its own offer.
func New(p peer.Peer, s Signaler, polite bool, logger *zap.Logger, m *metric.Metrics) *Negotiator {
	return &Negotiator{
		peer:     p,
		signaler: s,
		polite:   polite,
		logger:   logger.Named("negotiation").With(zap.Bool("polite", polite)),
		metrics:  m,
	}
}

// Polite reports the negotiator's role.
func (n *Negotiator) Polite() bool {
	return n.polite
}

// MakingOffer reports whether an offer is in flight.
func (n *Negotiator) MakingOffer() bool {
	return n.makingOffer.Load()
}

// MaybeOffer creates and sends an offer when the gate is open, no offer is
// in flight and the connection is stable. Otherwise it skips; the next
// qualifying event triggers a new check.
func (n *Negotiator) MaybeOffer(g Gate) (Outcome, error) {
	if !g.Open() {
		return OutcomeSkipped, nil
	}
	if n.peer.SignalingState() != webrtc.SignalingStateStable {
		return OutcomeSkipped, nil
	}
	if !n.makingOffer.CompareAndSwap(false, true) {
		return OutcomeSkipped, nil
	}
	defer n.makingOffer.Store(false)

	offer, err := n.peer.CreateOffer()
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to create offer: %w", err)
	}
	if err := n.peer.SetLocalDescription(offer); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to set local offer: %w", err)
	}
	if err := n.signaler.Send(message.Offer, message.DescriptionPayload{Description: offer}); err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to send offer: %w", err)
	}
	n.metrics.OfferSent()
	n.logger.Debug("offer sent")
	return OutcomeOfferSent, nil
}

// HandleOffer applies a remote offer. An offer of our own that is being
// made or is still unanswered counts as a collision. On collision the
// impolite side ignores the remote offer and the polite side yields it back
// to the caller, which answers it on a replacement connection.
func (n *Negotiator) HandleOffer(offer webrtc.SessionDescription) (Outcome, error) {
	state := n.peer.SignalingState()
	collision := n.makingOffer.Load() || state != webrtc.SignalingStateStable

	n.mu.Lock()
	n.ignoreOffer = !n.polite && collision
	ignore := n.ignoreOffer
	n.mu.Unlock()

	if ignore {
		n.metrics.CollisionIgnored()
		n.logger.Debug("colliding offer ignored", zap.Stringer("state", state))
		return OutcomeIgnored, nil
	}
	if collision {
		n.logger.Debug("colliding offer yielded", zap.Stringer("state", state))
		return OutcomeYielded, nil
	}

	if err := n.peer.SetRemoteDescription(offer); err != nil {
		return OutcomeDropped, fmt.Errorf("failed to set remote offer: %w", err)
	}
	n.flushCandidates()

	if n.peer.SignalingState() != webrtc.SignalingStateHaveRemoteOffer {
		return OutcomeApplied, nil
	}
	answer, err := n.peer.CreateAnswer()
	if err != nil {
		return OutcomeApplied, fmt.Errorf("failed to create answer: %w", err)
	}
	if err := n.peer.SetLocalDescription(answer); err != nil {
		return OutcomeApplied, fmt.Errorf("failed to set local answer: %w", err)
	}
	if err := n.signaler.Send(message.Answer, message.DescriptionPayload{Description: answer}); err != nil {
		return OutcomeApplied, fmt.Errorf("failed to send answer: %w", err)
	}
	n.logger.Debug("answer sent")
	return OutcomeAnswered, nil
}

// HandleAnswer applies a remote answer. Outside have-local-offer the
// answer is stale and dropped.
func (n *Negotiator) HandleAnswer(answer webrtc.SessionDescription) (Outcome, error) {
	if state := n.peer.SignalingState(); state != webrtc.SignalingStateHaveLocalOffer {
		n.metrics.AnswerDropped()
		n.logger.Debug("stale answer dropped", zap.Stringer("state", state))
		return OutcomeDropped, nil
	}
	if err := n.peer.SetRemoteDescription(answer); err != nil {
		return OutcomeDropped, fmt.Errorf("failed to set remote answer: %w", err)
	}
	n.flushCandidates()
	return OutcomeApplied, nil
}

// HandleCandidate applies a remote candidate, or buffers it until a remote
// description exists. Failures for a candidate of an ignored offer are
// expected and dropped.
func (n *Negotiator) HandleCandidate(c webrtc.ICECandidateInit) (Outcome, error) {
	n.mu.Lock()
	if n.peer.RemoteDescription() == nil {
		n.pending = append(n.pending, c)
		n.mu.Unlock()
		return OutcomeQueued, nil
	}
	ignore := n.ignoreOffer
	n.mu.Unlock()

	if err := n.peer.AddICECandidate(c); err != nil {
		if ignore {
			return OutcomeDropped, nil
		}
		return OutcomeDropped, fmt.Errorf("failed to add candidate: %w", err)
	}
	return OutcomeApplied, nil
}

// Pending returns the number of buffered candidates.
func (n *Negotiator) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *Negotiator) flushCandidates() {
	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, c := range pending {
		if err := n.peer.AddICECandidate(c); err != nil {
			n.logger.Debug("buffered candidate rejected", zap.Error(err))
		}
	}
}
