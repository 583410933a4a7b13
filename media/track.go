package media

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// LocalTrack feeds one capture into a TrackLocalStaticRTP. The same track
// is bound into every peer connection of the session, so replacing the
// connection never touches the hardware.
type LocalTrack struct {
	capture Capture
	track   *webrtc.TrackLocalStaticRTP
	logger  *zap.Logger
	enabled atomic.Bool
	done    chan struct{}
	once    sync.Once
}

func newLocalTrack(c Capture, streamID string, logger *zap.Logger) (*LocalTrack, error) {
	kind := c.Kind().String()
	track, err := webrtc.NewTrackLocalStaticRTP(c.Codec(), kind, streamID)
	if err != nil {
		return nil, err
	}
	t := &LocalTrack{
		capture: c,
		track:   track,
		logger:  logger.With(zap.String("kind", kind)),
		done:    make(chan struct{}),
	}
	t.enabled.Store(true)
	return t, nil
}

// Kind returns audio or video.
func (t *LocalTrack) Kind() webrtc.RTPCodecType {
	return t.capture.Kind()
}

// Track returns the track bound into peer connections.
func (t *LocalTrack) Track() *webrtc.TrackLocalStaticRTP {
	return t.track
}

// Enabled reports whether packets are forwarded.
func (t *LocalTrack) Enabled() bool {
	return t.enabled.Load()
}

// pump copies packets from the capture until it ends. Packets read while
// the track is disabled are dropped, which mutes the track on the wire
// without renegotiating.
func (t *LocalTrack) pump() {
	defer close(t.done)
	for {
		packets, err := t.capture.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Warn("capture read failed", zap.Error(err))
			}
			return
		}
		if !t.enabled.Load() {
			continue
		}
		for _, pkt := range packets {
			if err := t.track.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
				t.logger.Debug("failed to write rtp", zap.Error(err))
			}
		}
	}
}

func (t *LocalTrack) stop() {
	t.once.Do(func() {
		if err := t.capture.Close(); err != nil {
			t.logger.Debug("failed to close capture", zap.Error(err))
		}
		<-t.done
	})
}
