package media_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"telecall/media"
	"telecall/media/mediatest"
)

func defaultConstraints() media.Constraints {
	return media.Config{Width: 640, Height: 480, FrameRate: 30, MTU: 1200}.Constraints()
}

func TestAcquire(t *testing.T) {
	tests := []struct {
		name       string
		source     *mediatest.Source
		wantErr    bool
		wantTracks int
	}{
		{
			name:       "given working devices when acquired then audio and video tracks exist",
			source:     &mediatest.Source{},
			wantTracks: 2,
		},
		{
			name:    "given denied permission when acquired then access error is returned",
			source:  &mediatest.Source{Err: errors.New("permission denied")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := media.NewPipeline(tt.source, zaptest.NewLogger(t))
			defer func() { assert.NoError(t, p.Release()) }()

			err := p.Acquire(context.Background(), defaultConstraints())
			if tt.wantErr {
				var accessErr *media.AccessError
				assert.ErrorAs(t, err, &accessErr)
				assert.Empty(t, p.LocalTracks())
				return
			}
			require.NoError(t, err)
			assert.Len(t, p.LocalTracks(), tt.wantTracks)
		})
	}
}

func TestAcquireTwice(t *testing.T) {
	src := &mediatest.Source{}
	p := media.NewPipeline(src, zaptest.NewLogger(t))
	defer func() { _ = p.Release() }()

	require.NoError(t, p.Acquire(context.Background(), defaultConstraints()))
	assert.ErrorIs(t, p.Acquire(context.Background(), defaultConstraints()), media.ErrAlreadyAcquired)
	assert.Equal(t, 1, src.Opened())
}

func TestSetTrackEnabled(t *testing.T) {
	p := media.NewPipeline(&mediatest.Source{}, zaptest.NewLogger(t))
	defer func() { _ = p.Release() }()

	assert.ErrorIs(t, p.SetTrackEnabled(webrtc.RTPCodecTypeAudio, false), media.ErrNotAcquired)

	require.NoError(t, p.Acquire(context.Background(), defaultConstraints()))
	before := p.LocalTracks()

	require.NoError(t, p.SetTrackEnabled(webrtc.RTPCodecTypeAudio, false))
	assert.False(t, p.Enabled(webrtc.RTPCodecTypeAudio))
	assert.True(t, p.Enabled(webrtc.RTPCodecTypeVideo))

	require.NoError(t, p.SetTrackEnabled(webrtc.RTPCodecTypeAudio, true))
	assert.True(t, p.Enabled(webrtc.RTPCodecTypeAudio))
	assert.Equal(t, before, p.LocalTracks(), "toggling must not replace tracks")
}

func TestRelease(t *testing.T) {
	src := &mediatest.Source{}
	p := media.NewPipeline(src, zaptest.NewLogger(t))
	require.NoError(t, p.Acquire(context.Background(), defaultConstraints()))

	require.Eventually(t, func() bool {
		for _, c := range src.Captures() {
			if c.Read() == 0 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
	for _, c := range src.Captures() {
		assert.True(t, c.Closed())
	}
	assert.Empty(t, p.LocalTracks())
	assert.ErrorIs(t, p.Acquire(context.Background(), defaultConstraints()), media.ErrReleased)
}

func TestRemote(t *testing.T) {
	sink := &mediatest.Sink{}
	r := media.NewRemote(sink, zaptest.NewLogger(t))

	video := mediatest.NewRemoteTrack("v", webrtc.RTPCodecTypeVideo)
	r.Attach(video)
	assert.Equal(t, 1, r.Tracks())

	video.Push(&rtp.Packet{Payload: []byte{1, 2}})
	require.Eventually(t, func() bool {
		return sink.Count(webrtc.RTPCodecTypeVideo) == 1
	}, time.Second, 5*time.Millisecond)

	r.Clear()
	assert.Equal(t, 0, r.Tracks())
	video.Push(&rtp.Packet{Payload: []byte{3}})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sink.Count(webrtc.RTPCodecTypeVideo), "cleared track must not render")

	audio := mediatest.NewRemoteTrack("a", webrtc.RTPCodecTypeAudio)
	r.Attach(audio)
	audio.End()
	require.Eventually(t, func() bool { return r.Tracks() == 0 }, time.Second, 5*time.Millisecond)

	_, v, bytes := r.Stats()
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, uint64(2), bytes)
}

func TestConfigValidate(t *testing.T) {
	valid := media.Config{Width: 640, Height: 480, FrameRate: 30, MTU: 1200}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Width = 0
	assert.ErrorIs(t, bad.Validate(), media.ErrInvalidConstraints)

	bad = valid
	bad.FrameRate = 0
	assert.ErrorIs(t, bad.Validate(), media.ErrInvalidConstraints)
}
