package message_test

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecall/types/message"
)

func TestEnvelope(t *testing.T) {
	t.Run("given nil payload when built then payload is omitted", func(t *testing.T) {
		env, err := message.New(message.Ready, nil)
		require.NoError(t, err)
		assert.Equal(t, message.Ready, env.Type)
		assert.Empty(t, env.Payload)
		assert.Error(t, env.Decode(&struct{}{}))
	})

	t.Run("given description payload when decoded then sdp survives", func(t *testing.T) {
		desc := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"}
		env, err := message.New(message.Offer, message.DescriptionPayload{Description: desc})
		require.NoError(t, err)

		var got message.DescriptionPayload
		require.NoError(t, env.Decode(&got))
		assert.Equal(t, desc, got.Description)
	})
}

func TestIsRelayed(t *testing.T) {
	tests := []struct {
		typ  message.Type
		want bool
	}{
		{message.Ready, true},
		{message.Offer, true},
		{message.Answer, true},
		{message.ICECandidate, true},
		{message.JoinRoom, false},
		{message.Leave, false},
		{message.RoomUpdate, false},
	}
	for _, tt := range tests {
		t.Run("given "+string(tt.typ)+" when checked then relay matches", func(t *testing.T) {
			assert.Equal(t, tt.want, tt.typ.IsRelayed())
		})
	}
}
