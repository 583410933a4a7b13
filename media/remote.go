package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// DiscardSink drops every packet.
type DiscardSink struct{}

// WriteRTP implements Sink.
func (DiscardSink) WriteRTP(webrtc.RTPCodecType, *rtp.Packet) error { return nil }

// Remote renders the remote party's tracks into a sink.
type Remote struct {
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	epoch  uint64
	tracks map[string]webrtc.RTPCodecType

	audioPackets atomic.Uint64
	videoPackets atomic.Uint64
	bytes        atomic.Uint64
}

// NewRemote creates a renderer writing into sink.
func NewRemote(sink Sink, logger *zap.Logger) *Remote {
	if sink == nil {
		sink = DiscardSink{}
	}
	return &Remote{
		sink:   sink,
		logger: logger.Named("remote"),
		tracks: make(map[string]webrtc.RTPCodecType),
	}
}

// Attach starts rendering track. Reading stops when the track ends or the
// renderer is cleared.
func (r *Remote) Attach(track RemoteTrack) {
	r.mu.Lock()
	epoch := r.epoch
	r.tracks[track.ID()] = track.Kind()
	r.mu.Unlock()

	r.logger.Info("remote track attached", zap.String("id", track.ID()), zap.Stringer("kind", track.Kind()))
	go r.read(track, epoch)
}

func (r *Remote) read(track RemoteTrack, epoch uint64) {
	kind := track.Kind()
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			r.detach(track.ID(), epoch)
			return
		}
		if !r.current(epoch) {
			return
		}
		switch kind {
		case webrtc.RTPCodecTypeAudio:
			r.audioPackets.Add(1)
		case webrtc.RTPCodecTypeVideo:
			r.videoPackets.Add(1)
		}
		r.bytes.Add(uint64(len(pkt.Payload)))
		if err := r.sink.WriteRTP(kind, pkt); err != nil {
			r.logger.Debug("sink write failed", zap.Error(err))
		}
	}
}

func (r *Remote) current(epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch == epoch
}

func (r *Remote) detach(id string, epoch uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.epoch == epoch {
		delete(r.tracks, id)
	}
}

// Clear forgets every remote track. Readers started before the call stop
// delivering to the sink.
func (r *Remote) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.tracks = make(map[string]webrtc.RTPCodecType)
}

// Tracks returns the number of tracks currently rendered.
func (r *Remote) Tracks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tracks)
}

// Stats returns the packet counts per kind and the payload bytes rendered.
func (r *Remote) Stats() (audio, video, bytes uint64) {
	return r.audioPackets.Load(), r.videoPackets.Load(), r.bytes.Load()
}
