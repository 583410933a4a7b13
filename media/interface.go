package media

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// Source opens capture devices.
type Source interface {
	Open(ctx context.Context, c Constraints) ([]Capture, error)
}

// Capture is one encoded stream coming off a device.
type Capture interface {
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecCapability
	// ReadRTP blocks until packets are available. It returns io.EOF once
	// the capture is closed.
	ReadRTP() ([]*rtp.Packet, error)
	Close() error
}

// RemoteTrack is the read side of an incoming track. *webrtc.TrackRemote
// satisfies it.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// Sink consumes remote media.
type Sink interface {
	WriteRTP(kind webrtc.RTPCodecType, pkt *rtp.Packet) error
}
