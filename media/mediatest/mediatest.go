// Package mediatest provides in-memory capture devices and remote tracks
// for tests.
package mediatest

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"telecall/media"
)

// Codecs used by the fake captures.
var (
	VideoCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	AudioCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
)

// Source opens one audio and one video Capture. Err makes Open fail.
type Source struct {
	Err      error
	Interval time.Duration

	mu       sync.Mutex
	opened   int
	captures []*Capture
}

// Open implements media.Source.
func (s *Source) Open(_ context.Context, c media.Constraints) ([]media.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	s.opened++

	var out []media.Capture
	if c.Audio {
		capture := NewCapture(webrtc.RTPCodecTypeAudio, s.Interval)
		s.captures = append(s.captures, capture)
		out = append(out, capture)
	}
	if c.Video {
		capture := NewCapture(webrtc.RTPCodecTypeVideo, s.Interval)
		s.captures = append(s.captures, capture)
		out = append(out, capture)
	}
	return out, nil
}

// Opened returns how many times Open succeeded.
func (s *Source) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Captures returns every capture handed out.
func (s *Source) Captures() []*Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Capture(nil), s.captures...)
}

// Capture produces one synthetic packet per interval until closed.
type Capture struct {
	kind     webrtc.RTPCodecType
	interval time.Duration
	seq      uint16
	read     atomic.Uint64
	closed   chan struct{}
	once     sync.Once
}

// NewCapture creates a fake capture of kind. A zero interval defaults to
// 5ms.
func NewCapture(kind webrtc.RTPCodecType, interval time.Duration) *Capture {
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	return &Capture{
		kind:     kind,
		interval: interval,
		closed:   make(chan struct{}),
	}
}

// Kind implements media.Capture.
func (c *Capture) Kind() webrtc.RTPCodecType { return c.kind }

// Codec implements media.Capture.
func (c *Capture) Codec() webrtc.RTPCodecCapability {
	if c.kind == webrtc.RTPCodecTypeAudio {
		return AudioCodec
	}
	return VideoCodec
}

// ReadRTP implements media.Capture.
func (c *Capture) ReadRTP() ([]*rtp.Packet, error) {
	select {
	case <-c.closed:
		return nil, io.EOF
	case <-time.After(c.interval):
	}
	c.seq++
	c.read.Add(1)
	return []*rtp.Packet{{
		Header:  rtp.Header{Version: 2, SequenceNumber: c.seq, PayloadType: 96},
		Payload: []byte{0x00, 0x01, 0x02},
	}}, nil
}

// Read returns the number of packets produced.
func (c *Capture) Read() uint64 { return c.read.Load() }

// Close implements media.Capture.
func (c *Capture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Capture) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// RemoteTrack is a media.RemoteTrack fed through Push.
type RemoteTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	packets chan *rtp.Packet
	once    sync.Once
}

// NewRemoteTrack creates a remote track.
func NewRemoteTrack(id string, kind webrtc.RTPCodecType) *RemoteTrack {
	return &RemoteTrack{id: id, kind: kind, packets: make(chan *rtp.Packet, 16)}
}

// ID implements media.RemoteTrack.
func (t *RemoteTrack) ID() string { return t.id }

// Kind implements media.RemoteTrack.
func (t *RemoteTrack) Kind() webrtc.RTPCodecType { return t.kind }

// ReadRTP implements media.RemoteTrack.
func (t *RemoteTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	pkt, ok := <-t.packets
	if !ok {
		return nil, nil, io.EOF
	}
	return pkt, interceptor.Attributes{}, nil
}

// Push delivers a packet to the reader.
func (t *RemoteTrack) Push(pkt *rtp.Packet) { t.packets <- pkt }

// End closes the track.
func (t *RemoteTrack) End() { t.once.Do(func() { close(t.packets) }) }

// Sink records what it receives.
type Sink struct {
	mu      sync.Mutex
	packets map[webrtc.RTPCodecType]int
}

// WriteRTP implements media.Sink.
func (s *Sink) WriteRTP(kind webrtc.RTPCodecType, _ *rtp.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packets == nil {
		s.packets = make(map[webrtc.RTPCodecType]int)
	}
	s.packets[kind]++
	return nil
}

// Count returns the packets received of kind.
func (s *Sink) Count(kind webrtc.RTPCodecType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets[kind]
}
