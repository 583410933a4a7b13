// Package media acquires local capture, feeds it into WebRTC tracks and
// renders the remote party's tracks.
package media

import (
	"errors"
	"fmt"
)

// Default capture targets.
const (
	DefaultWidth        = 640
	DefaultHeight       = 480
	DefaultFrameRate    = 30
	DefaultVideoBitRate = 500_000
	DefaultAudioBitRate = 32_000
	DefaultMTU          = 1200
)

// ErrInvalidConstraints is returned for a non-positive capture target.
var ErrInvalidConstraints = errors.New("invalid media constraints")

// Constraints is the capture target for one acquisition.
type Constraints struct {
	Audio     bool
	Video     bool
	Width     int
	Height    int
	FrameRate float64
}

// Config defines capture and encoding settings.
type Config struct {
	Width        int
	Height       int
	FrameRate    float64
	VideoBitRate int
	AudioBitRate int
	MTU          int
}

// Constraints returns the audio+video capture target of the config.
func (c Config) Constraints() Constraints {
	return Constraints{
		Audio:     true,
		Video:     true,
		Width:     c.Width,
		Height:    c.Height,
		FrameRate: c.FrameRate,
	}
}

// Validate validates the capture target.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("resolution %dx%d: %w", c.Width, c.Height, ErrInvalidConstraints)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame rate %v: %w", c.FrameRate, ErrInvalidConstraints)
	}
	if c.MTU <= 0 {
		return fmt.Errorf("mtu %d: %w", c.MTU, ErrInvalidConstraints)
	}
	return nil
}
