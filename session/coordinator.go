package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"telecall/calllog"
	"telecall/media"
	"telecall/metric"
	"telecall/negotiation"
	"telecall/peer"
	"telecall/types/message"
)

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("session already running")

// MediaPipeline is the local capture of the session.
type MediaPipeline interface {
	Acquire(ctx context.Context, c media.Constraints) error
	SetTrackEnabled(kind webrtc.RTPCodecType, enabled bool) error
	LocalTracks() []webrtc.TrackLocal
	Release() error
}

// Renderer renders the remote party.
type Renderer interface {
	Attach(track media.RemoteTrack)
	Clear()
}

// Signaling is the channel to the relay.
type Signaling interface {
	Connect(ctx context.Context) error
	JoinRoom(ctx context.Context, appointmentID, roomID string) (message.JoinedPayload, error)
	Send(typ message.Type, payload any) error
	Events() <-chan message.Envelope
	Disconnect() error
}

// Dependencies are the resources a Coordinator drives.
type Dependencies struct {
	Media     MediaPipeline
	Remote    Renderer
	Signaling Signaling
	Peers     peer.Factory
	CallLog   calllog.Service
	Metrics   *metric.Metrics
	Logger    *zap.Logger

	// OnStatus receives every change of the status line.
	OnStatus func(status string)
	// Navigate is called when the session leaves the call screen.
	Navigate func(reason NavigateReason)
}

// result wraps the event posted by an asynchronous effect.
type result struct {
	ev Event
}

func (result) event() {}

type conn struct {
	gen  uint64
	peer peer.Peer
	neg  *negotiation.Negotiator
}

// Coordinator runs one session. Every transition happens on the goroutine
// calling Run; callbacks and I/O results are posted to it as events.
type Coordinator struct {
	conf   Config
	deps   Dependencies
	logger *zap.Logger

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}

	stateMu sync.RWMutex
	state   State

	running  atomic.Bool
	ctx      context.Context
	inflight int
	live     *conn
	retry    backoff.BackOff
}

// New creates a coordinator for the given appointment and room.
func New(conf Config, appointmentID, roomID string, deps Dependencies) *Coordinator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CallLog == nil {
		deps.CallLog = calllog.Noop{}
	}
	if deps.Remote == nil {
		deps.Remote = media.NewRemote(nil, deps.Logger)
	}
	if conf.EndLogTimeout <= 0 {
		conf.EndLogTimeout = DefaultEndLogTimeout
	}
	return &Coordinator{
		conf:   conf,
		deps:   deps,
		logger: deps.Logger.Named("session").With(zap.String("room", roomID)),
		notify: make(chan struct{}, 1),
		state:  NewState(appointmentID, roomID),
		retry:  newRetryPolicy(conf),
	}
}

func newRetryPolicy(conf Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = conf.RetryDelay
	b.Multiplier = conf.RetryMultiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	if conf.MaxRetries > 0 {
		return backoff.WithMaxRetries(b, uint64(conf.MaxRetries))
	}
	return b
}

// Run starts the session and blocks until it has ended and every
// outstanding request has finished. Cancelling ctx unmounts the session.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.ctx = ctx
	stop := context.AfterFunc(ctx, func() { c.post(Unmount{}) })
	defer stop()

	c.post(Mount{})
	for {
		ev := c.next()
		if r, ok := ev.(result); ok {
			c.inflight--
			if r.ev == nil {
				if c.done() {
					return nil
				}
				continue
			}
			ev = r.ev
		}
		c.dispatch(ev)
		if c.done() {
			return nil
		}
	}
}

// Leave ends the call and navigates away.
func (c *Coordinator) Leave() {
	c.post(Leave{})
}

// SetAudio enables or disables the local audio track.
func (c *Coordinator) SetAudio(enabled bool) {
	c.post(ToggleTrack{Kind: webrtc.RTPCodecTypeAudio, Enabled: enabled})
}

// SetVideo enables or disables the local video track.
func (c *Coordinator) SetVideo(enabled bool) {
	c.post(ToggleTrack{Kind: webrtc.RTPCodecTypeVideo, Enabled: enabled})
}

// State returns a snapshot of the session.
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// post queues ev for the loop. It never blocks.
func (c *Coordinator) post(ev Event) {
	c.mu.Lock()
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *Coordinator) next() Event {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			ev := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return ev
		}
		c.mu.Unlock()
		<-c.notify
	}
}

func (c *Coordinator) done() bool {
	return c.State().Conn == StateEnded && c.inflight == 0
}

func (c *Coordinator) dispatch(ev Event) {
	if n, ok := ev.(Negotiated); ok && n.Err != nil {
		c.logger.Warn("negotiation failed", zap.Uint64("gen", n.Gen), zap.Error(n.Err))
	}

	prev := c.State()
	next, effects := Transition(prev, ev)

	c.stateMu.Lock()
	c.state = next
	c.stateMu.Unlock()

	if next.Conn != prev.Conn {
		c.deps.Metrics.Transition(string(next.Conn))
		c.logger.Info("session state changed",
			zap.String("from", string(prev.Conn)),
			zap.String("to", string(next.Conn)),
		)
	}
	if next.Status != prev.Status && c.deps.OnStatus != nil {
		c.deps.OnStatus(next.Status)
	}

	for _, eff := range effects {
		c.execute(eff)
	}
}

// spawn runs fn on its own goroutine and posts its event back. Run does not
// return while a spawned function is outstanding.
func (c *Coordinator) spawn(fn func() Event) {
	c.inflight++
	go func() {
		c.post(result{ev: fn()})
	}()
}

func (c *Coordinator) execute(eff Effect) {
	switch e := eff.(type) {
	case AcquireMedia:
		c.spawn(func() Event {
			if err := c.deps.Media.Acquire(c.ctx, c.conf.Constraints); err != nil {
				c.logger.Warn("media unavailable", zap.Error(err))
				return MediaFailed{Err: err}
			}
			return MediaAcquired{}
		})

	case ReleaseMedia:
		if err := c.deps.Media.Release(); err != nil {
			c.logger.Debug("failed to release media", zap.Error(err))
		}

	case ClearRemoteMedia:
		c.deps.Remote.Clear()

	case RenderTrack:
		c.deps.Remote.Attach(e.Track)

	case SetTrackEnabled:
		if err := c.deps.Media.SetTrackEnabled(e.Kind, e.Enabled); err != nil {
			c.logger.Debug("failed to toggle track", zap.Stringer("kind", e.Kind), zap.Error(err))
		}

	case ConnectSignaling:
		c.spawn(func() Event {
			if err := c.deps.Signaling.Connect(c.ctx); err != nil {
				c.logger.Warn("signaling unavailable", zap.Error(err))
				return SignalingFailed{Err: err}
			}
			return SignalingConnected{}
		})

	case JoinRoom:
		c.spawn(func() Event {
			ack, err := c.deps.Signaling.JoinRoom(c.ctx, e.AppointmentID, e.RoomID)
			if err != nil {
				c.logger.Warn("failed to join room", zap.Error(err))
				return JoinFailed{Err: err}
			}
			return Joined{Ack: ack}
		})

	case ListenSignaling:
		c.spawn(func() Event {
			for env := range c.deps.Signaling.Events() {
				ev, err := FromEnvelope(env)
				if err != nil {
					c.logger.Warn("dropped signaling message", zap.String("type", string(env.Type)), zap.Error(err))
					continue
				}
				if ev != nil {
					c.post(ev)
				}
			}
			return SignalingLost{}
		})

	case DisconnectSignaling:
		if err := c.deps.Signaling.Disconnect(); err != nil {
			c.logger.Debug("failed to disconnect signaling", zap.Error(err))
		}

	case SendReady:
		c.send(message.Ready, nil)

	case SendCandidate:
		c.send(message.ICECandidate, message.CandidatePayload{Candidate: e.Candidate})

	case StartLog:
		c.spawn(func() Event {
			id, err := c.deps.CallLog.StartLog(c.ctx, e.AppointmentID, e.RoomID)
			if err != nil {
				c.logger.Warn("failed to start call log", zap.Error(err))
				return nil
			}
			return LogStarted{ID: id}
		})

	case EndLog:
		c.spawn(func() Event {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.conf.EndLogTimeout)
			defer cancel()
			if err := c.deps.CallLog.EndLog(ctx, e.LogID); err != nil {
				c.logger.Warn("failed to end call log", zap.String("log", e.LogID), zap.Error(err))
			}
			return nil
		})

	case Navigate:
		c.navigate(e.Reason)

	case ClosePeer:
		c.closePeer()

	case CreatePeer:
		c.createPeer(e.Gen, e.Polite)

	case Offer:
		if n := c.negotiator(e.Gen); n != nil {
			outcome, err := n.MaybeOffer(e.Gate)
			c.post(Negotiated{Gen: e.Gen, Outcome: outcome, Err: err})
		}

	case ApplyOffer:
		if n := c.negotiator(e.Gen); n != nil {
			outcome, err := n.HandleOffer(e.Description)
			if outcome == negotiation.OutcomeYielded {
				// Dispatched in place so candidates queued behind the offer
				// reach the replacement connection.
				c.dispatch(OfferYielded{Gen: e.Gen, Description: e.Description})
				return
			}
			c.post(Negotiated{Gen: e.Gen, Outcome: outcome, Err: err})
		}

	case ApplyAnswer:
		if n := c.negotiator(e.Gen); n != nil {
			outcome, err := n.HandleAnswer(e.Description)
			c.post(Negotiated{Gen: e.Gen, Outcome: outcome, Err: err})
		}

	case ApplyCandidate:
		if n := c.negotiator(e.Gen); n != nil {
			outcome, err := n.HandleCandidate(e.Candidate)
			if err != nil {
				c.post(Negotiated{Gen: e.Gen, Outcome: outcome, Err: err})
			}
		}

	case ScheduleRetry:
		delay := c.retry.NextBackOff()
		if delay == backoff.Stop {
			c.logger.Warn("reconnect attempts exhausted", zap.Uint64("gen", e.Gen))
			c.post(RetryExhausted{Gen: e.Gen})
			return
		}
		c.deps.Metrics.ReconnectScheduled()
		c.logger.Info("reconnect scheduled", zap.Uint64("gen", e.Gen), zap.Duration("delay", delay))
		time.AfterFunc(delay, func() { c.post(RetryFired{Gen: e.Gen}) })

	case ResetRetry:
		c.retry.Reset()
	}
}

func (c *Coordinator) send(typ message.Type, payload any) {
	if err := c.deps.Signaling.Send(typ, payload); err != nil {
		c.logger.Warn("failed to send signaling message", zap.String("type", string(typ)), zap.Error(err))
	}
}

func (c *Coordinator) navigate(reason NavigateReason) {
	if c.deps.Navigate == nil {
		return
	}
	if reason != NavigateRoomFull {
		c.deps.Navigate(reason)
		return
	}
	c.spawn(func() Event {
		select {
		case <-time.After(c.conf.RoomFullRedirect):
			c.deps.Navigate(reason)
		case <-c.ctx.Done():
		}
		return nil
	})
}

// createPeer opens the connection of generation gen. Its callbacks are
// tagged with gen so that events of a replaced connection are dropped.
func (c *Coordinator) createPeer(gen uint64, polite bool) {
	h := peer.Handlers{
		OnICECandidate: func(cand webrtc.ICECandidateInit) {
			c.post(LocalCandidate{Gen: gen, Candidate: cand})
		},
		OnConnectionStateChange: func(s webrtc.PeerConnectionState) {
			c.post(TransportState{Gen: gen, State: s})
		},
		OnTrack: func(t media.RemoteTrack) {
			c.post(RemoteTrack{Gen: gen, Track: t})
		},
	}
	p, err := c.deps.Peers.New(h, c.deps.Media.LocalTracks())
	if err != nil {
		c.logger.Error("failed to create peer connection", zap.Uint64("gen", gen), zap.Error(err))
		c.post(TransportState{Gen: gen, State: webrtc.PeerConnectionStateFailed})
		return
	}
	c.live = &conn{
		gen:  gen,
		peer: p,
		neg:  negotiation.New(p, c.deps.Signaling, polite, c.logger, c.deps.Metrics),
	}
	c.deps.Metrics.IncrementPeerConnections()
	c.logger.Debug("peer connection created", zap.Uint64("gen", gen), zap.Bool("polite", polite))
}

func (c *Coordinator) closePeer() {
	if c.live == nil {
		return
	}
	live := c.live
	c.live = nil
	if err := live.peer.Close(); err != nil {
		c.logger.Debug("failed to close peer connection", zap.Uint64("gen", live.gen), zap.Error(err))
	}
	c.deps.Metrics.DecrementPeerConnections()
}

func (c *Coordinator) negotiator(gen uint64) *negotiation.Negotiator {
	if c.live == nil || c.live.gen != gen {
		return nil
	}
	return c.live.neg
}
