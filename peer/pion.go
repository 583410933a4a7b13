package peer

import (
	"fmt"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"telecall/logging"
)

// PionFactory creates pion peer connections sharing one API instance.
type PionFactory struct {
	api    *webrtc.API
	conf   webrtc.Configuration
	logger *zap.Logger
}

// NewPionFactory builds the media engine, the default interceptors and
// the setting engine once.
func NewPionFactory(conf Config, logger *zap.Logger) (*PionFactory, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register default codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("failed to register default interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	se.LoggerFactory = logging.NewPionFactory(logger)
	if err := conf.SetPortRange(&se); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	)
	return &PionFactory{
		api:    api,
		conf:   conf.configuration(),
		logger: logger.Named("peer"),
	}, nil
}

// New implements Factory.
func (f *PionFactory) New(h Handlers, tracks []webrtc.TrackLocal) (Peer, error) {
	pc, err := f.api.NewPeerConnection(f.conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	p := &pionPeer{pc: pc, logger: f.logger}

	kinds := map[webrtc.RTPCodecType]bool{}
	for _, track := range tracks {
		sender, err := pc.AddTrack(track)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to add %s track: %w", track.Kind(), err)
		}
		kinds[track.Kind()] = true
		go drainRTCP(sender)
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if kinds[kind] {
			continue
		}
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	p.attach(h)
	return p, nil
}

// drainRTCP reads RTCP so interceptors such as NACK keep working. It ends
// when the sender is stopped.
func drainRTCP(sender *webrtc.RTPSender) {
	rtcpBuf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(rtcpBuf); err != nil {
			return
		}
	}
}

type pionPeer struct {
	pc       *webrtc.PeerConnection
	logger   *zap.Logger
	detached atomic.Bool
}

func (p *pionPeer) attach(h Handlers) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || p.detached.Load() || h.OnICECandidate == nil {
			return
		}
		h.OnICECandidate(c.ToJSON())
	})
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if p.detached.Load() || h.OnConnectionStateChange == nil {
			return
		}
		h.OnConnectionStateChange(s)
	})
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if p.detached.Load() || h.OnTrack == nil {
			return
		}
		h.OnTrack(track)
	})
}

func (p *pionPeer) SignalingState() webrtc.SignalingState {
	return p.pc.SignalingState()
}

func (p *pionPeer) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *pionPeer) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionPeer) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionPeer) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionPeer) RemoteDescription() *webrtc.SessionDescription {
	return p.pc.RemoteDescription()
}

func (p *pionPeer) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

// Close detaches the handlers before closing so the closed and
// disconnected transitions of this connection are never reported.
func (p *pionPeer) Close() error {
	if p.detached.Swap(true) {
		return nil
	}
	p.pc.OnICECandidate(func(*webrtc.ICECandidate) {})
	p.pc.OnConnectionStateChange(func(webrtc.PeerConnectionState) {})
	p.pc.OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {})
	if err := p.pc.Close(); err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}
	return nil
}
