package negotiation_test

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telecall/negotiation"
	"telecall/peer"
)

// TestGlareWithPion resolves a simultaneous offer between two real pion
// connections.
func TestGlareWithPion(t *testing.T) {
	f, err := peer.NewPionFactory(peer.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	a, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	toB, toA := &wire{}, &wire{}
	impolite := negotiation.New(a, toB, false, zaptest.NewLogger(t), nil)
	polite := negotiation.New(b, toA, true, zaptest.NewLogger(t), nil)

	_, err = impolite.MaybeOffer(openGate())
	require.NoError(t, err)
	_, err = polite.MaybeOffer(openGate())
	require.NoError(t, err)
	require.Equal(t, webrtc.SignalingStateHaveLocalOffer, a.SignalingState())
	require.Equal(t, webrtc.SignalingStateHaveLocalOffer, b.SignalingState())

	got, err := impolite.HandleOffer(toA.messages()[0].desc)
	require.NoError(t, err)
	assert.Equal(t, negotiation.OutcomeIgnored, got)

	got, err = polite.HandleOffer(toB.messages()[0].desc)
	require.NoError(t, err)
	assert.Equal(t, negotiation.OutcomeYielded, got)
	assert.Equal(t, webrtc.SignalingStateHaveLocalOffer, b.SignalingState())

	// The polite side answers on a replacement connection.
	require.NoError(t, b.Close())
	b2, err := f.New(peer.Handlers{}, nil)
	require.NoError(t, err)
	defer func() { _ = b2.Close() }()
	replaced := negotiation.New(b2, toA, true, zaptest.NewLogger(t), nil)

	got, err = replaced.HandleOffer(toB.messages()[0].desc)
	require.NoError(t, err)
	assert.Equal(t, negotiation.OutcomeAnswered, got)

	got, err = impolite.HandleAnswer(toA.messages()[1].desc)
	require.NoError(t, err)
	assert.Equal(t, negotiation.OutcomeApplied, got)

	assert.Equal(t, webrtc.SignalingStateStable, a.SignalingState())
	assert.Equal(t, webrtc.SignalingStateStable, b2.SignalingState())
	assert.Equal(t, toB.messages()[0].desc.SDP, b2.RemoteDescription().SDP)
}
