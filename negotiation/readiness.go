// Package negotiation implements perfect negotiation over one peer
// connection: offer gating, glare resolution between a polite and an
// impolite side, stale answer dropping and ICE candidate buffering.
package negotiation

// Readiness tracks whether each side has announced it can negotiate. It
// outlives individual peer connections.
type Readiness struct {
	local  bool
	remote bool
}

// MarkLocal records that this side joined and announced ready.
func (r *Readiness) MarkLocal() { r.local = true }

// MarkRemote records the remote side's ready announcement.
func (r *Readiness) MarkRemote() { r.remote = true }

// ResetRemote forgets the remote side, for a new or departed peer.
func (r *Readiness) ResetRemote() { r.remote = false }

// Reset clears both sides.
func (r *Readiness) Reset() { *r = Readiness{} }

// Local reports local readiness.
func (r Readiness) Local() bool { return r.local }

// Remote reports remote readiness.
func (r Readiness) Remote() bool { return r.remote }

// Both reports whether both sides are ready.
func (r Readiness) Both() bool { return r.local && r.remote }

// Gate is the session-level precondition for creating an offer.
type Gate struct {
	Initiator          bool
	SignalingConnected bool
	Ready              Readiness
}

// Open reports whether an offer may be created, ignoring the connection's
// own state.
func (g Gate) Open() bool {
	return g.Initiator && g.SignalingConnected && g.Ready.Both()
}
