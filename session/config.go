package session

import (
	"errors"
	"fmt"
	"time"

	"telecall/media"
)

// Defaults of the session lifecycle.
const (
	DefaultRetryDelay       = time.Second
	DefaultRetryMultiplier  = 1.5
	DefaultMaxRetries       = 5
	DefaultRoomFullRedirect = 3 * time.Second
	DefaultEndLogTimeout    = 5 * time.Second
)

// ErrInvalidRetryPolicy is returned for a retry policy that cannot run.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// Config is the configuration of a Coordinator.
type Config struct {
	// RetryDelay is the wait before the first reconnect attempt.
	RetryDelay time.Duration
	// RetryMultiplier grows the wait between attempts.
	RetryMultiplier float64
	// MaxRetries bounds consecutive reconnect attempts. 0 retries forever.
	MaxRetries int
	// RoomFullRedirect is the wait before navigating away from a full room.
	RoomFullRedirect time.Duration
	// EndLogTimeout bounds the call-log request sent on teardown.
	EndLogTimeout time.Duration

	Constraints media.Constraints
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		RetryDelay:       DefaultRetryDelay,
		RetryMultiplier:  DefaultRetryMultiplier,
		MaxRetries:       DefaultMaxRetries,
		RoomFullRedirect: DefaultRoomFullRedirect,
		EndLogTimeout:    DefaultEndLogTimeout,
		Constraints: media.Config{
			Width:     media.DefaultWidth,
			Height:    media.DefaultHeight,
			FrameRate: media.DefaultFrameRate,
		}.Constraints(),
	}
}

// Validate validates the retry policy.
func (c Config) Validate() error {
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive, given %s: %w", c.RetryDelay, ErrInvalidRetryPolicy)
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("retry multiplier must be at least 1, given %v: %w", c.RetryMultiplier, ErrInvalidRetryPolicy)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, given %d: %w", c.MaxRetries, ErrInvalidRetryPolicy)
	}
	return nil
}
