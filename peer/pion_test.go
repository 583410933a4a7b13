package peer_test

import (
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telecall/peer"
)

func newFactory(t *testing.T) *peer.PionFactory {
	t.Helper()
	f, err := peer.NewPionFactory(peer.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return f
}

func TestPionOfferRequestsAudioAndVideo(t *testing.T) {
	f := newFactory(t)

	tests := []struct {
		name   string
		tracks func(t *testing.T) []webrtc.TrackLocal
	}{
		{
			name:   "given no local tracks when offering then both kinds are received",
			tracks: func(*testing.T) []webrtc.TrackLocal { return nil },
		},
		{
			name: "given only a video track when offering then audio is still requested",
			tracks: func(t *testing.T) []webrtc.TrackLocal {
				track, err := webrtc.NewTrackLocalStaticRTP(
					webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "test")
				require.NoError(t, err)
				return []webrtc.TrackLocal{track}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.New(peer.Handlers{}, tt.tracks(t))
			require.NoError(t, err)
			defer func() { assert.NoError(t, p.Close()) }()

			offer, err := p.CreateOffer()
			require.NoError(t, err)
			assert.True(t, strings.Contains(offer.SDP, "m=audio"))
			assert.True(t, strings.Contains(offer.SDP, "m=video"))
		})
	}
}

func TestPionSignalingStates(t *testing.T) {
	f := newFactory(t)
	offerer, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = offerer.Close() }()
	answerer, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = answerer.Close() }()

	offer, err := offerer.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, offerer.SetLocalDescription(offer))
	assert.Equal(t, webrtc.SignalingStateHaveLocalOffer, offerer.SignalingState())

	require.NoError(t, answerer.SetRemoteDescription(offer))
	assert.Equal(t, webrtc.SignalingStateHaveRemoteOffer, answerer.SignalingState())
	assert.NotNil(t, answerer.RemoteDescription())

	answer, err := answerer.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, answerer.SetLocalDescription(answer))
	require.NoError(t, offerer.SetRemoteDescription(answer))

	assert.Equal(t, webrtc.SignalingStateStable, offerer.SignalingState())
	assert.Equal(t, webrtc.SignalingStateStable, answerer.SignalingState())
}

func TestPionCollidingOffer(t *testing.T) {
	f := newFactory(t)
	p, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()
	other, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	offer, err := p.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, p.SetLocalDescription(offer))
	remote, err := other.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, other.SetLocalDescription(remote))

	assert.Error(t, p.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback, SDP: offer.SDP}),
		"given pending offer when rolling back then pion rejects it")
	assert.Error(t, p.SetRemoteDescription(remote),
		"given pending offer when a remote offer is applied then pion rejects it")
	assert.Equal(t, webrtc.SignalingStateHaveLocalOffer, p.SignalingState())
}

func TestPionCloseDetachesHandlers(t *testing.T) {
	f := newFactory(t)
	states := make(chan webrtc.PeerConnectionState, 8)
	p, err := f.New(peer.Handlers{
		OnConnectionStateChange: func(s webrtc.PeerConnectionState) { states <- s },
	}, nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	select {
	case s := <-states:
		t.Fatalf("handler fired after close with %s", s)
	default:
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		conf    peer.Config
		wantErr bool
	}{
		{name: "given no range when validated then ok", conf: peer.Config{}},
		{name: "given valid range when validated then ok", conf: peer.Config{MinUDPPort: 50000, MaxUDPPort: 50100}},
		{name: "given inverted range when validated then error", conf: peer.Config{MinUDPPort: 50100, MaxUDPPort: 50000}, wantErr: true},
		{name: "given only max when validated then error", conf: peer.Config{MaxUDPPort: 50000}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, peer.ErrInvalidPortRange)
				return
			}
			assert.NoError(t, err)
			se := webrtc.SettingEngine{}
			assert.NoError(t, tt.conf.SetPortRange(&se))
		})
	}
}
