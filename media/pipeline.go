package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// Pipeline owns the local capture of a session. Media is acquired once and
// shared read-only with every peer connection.
type Pipeline struct {
	source Source
	logger *zap.Logger

	mu       sync.Mutex
	tracks   []*LocalTrack
	acquired bool
	released bool
}

// NewPipeline creates a pipeline reading from source.
func NewPipeline(source Source, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		source: source,
		logger: logger.Named("media"),
	}
}

// Acquire opens the capture devices. Any failure is returned as an
// *AccessError.
func (p *Pipeline) Acquire(ctx context.Context, c Constraints) error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return ErrReleased
	}
	if p.acquired {
		p.mu.Unlock()
		return ErrAlreadyAcquired
	}
	p.acquired = true
	p.mu.Unlock()

	captures, err := p.source.Open(ctx, c)
	if err == nil && len(captures) == 0 {
		err = ErrNoDevice
	}
	if err != nil {
		p.mu.Lock()
		p.acquired = false
		p.mu.Unlock()
		var accessErr *AccessError
		if errors.As(err, &accessErr) {
			return err
		}
		return &AccessError{Err: err}
	}

	streamID := "telecall-" + shortuuid.New()
	tracks := make([]*LocalTrack, 0, len(captures))
	for _, capture := range captures {
		t, err := newLocalTrack(capture, streamID, p.logger)
		if err != nil {
			closeCaptures(captures)
			p.mu.Lock()
			p.acquired = false
			p.mu.Unlock()
			return &AccessError{Err: fmt.Errorf("failed to create %s track: %w", capture.Kind(), err)}
		}
		tracks = append(tracks, t)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Release may have run while the devices were opening.
	if p.released {
		closeCaptures(captures)
		return ErrReleased
	}
	p.tracks = tracks
	for _, t := range tracks {
		go t.pump()
	}
	p.logger.Info("media acquired",
		zap.Int("tracks", len(tracks)),
		zap.Int("width", c.Width),
		zap.Int("height", c.Height),
	)
	return nil
}

// SetTrackEnabled flips every local track of kind. It takes effect on the
// live connection immediately.
func (p *Pipeline) SetTrackEnabled(kind webrtc.RTPCodecType, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tracks) == 0 {
		return ErrNotAcquired
	}
	for _, t := range p.tracks {
		if t.Kind() == kind {
			t.enabled.Store(enabled)
		}
	}
	p.logger.Debug("track toggled", zap.Stringer("kind", kind), zap.Bool("enabled", enabled))
	return nil
}

// Enabled reports whether any track of kind is enabled.
func (p *Pipeline) Enabled(kind webrtc.RTPCodecType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tracks {
		if t.Kind() == kind && t.Enabled() {
			return true
		}
	}
	return false
}

// LocalTracks returns the tracks to bind into a peer connection.
func (p *Pipeline) LocalTracks() []webrtc.TrackLocal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]webrtc.TrackLocal, 0, len(p.tracks))
	for _, t := range p.tracks {
		out = append(out, t.track)
	}
	return out
}

// Release stops every track and frees the devices. It is idempotent.
func (p *Pipeline) Release() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	tracks := p.tracks
	p.tracks = nil
	p.mu.Unlock()

	for _, t := range tracks {
		t.stop()
	}
	if len(tracks) > 0 {
		p.logger.Info("media released")
	}
	return nil
}

func closeCaptures(captures []Capture) {
	for _, c := range captures {
		_ = c.Close()
	}
}
