package peer

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// DefaultICEServer is used when no ICE server is configured.
const DefaultICEServer = "stun:stun.l.google.com:19302"

// ErrInvalidPortRange is returned for an inverted UDP port range.
var ErrInvalidPortRange = errors.New("invalid udp port range")

// Config defines the configuration for peer connections.
type Config struct {
	ICEServers []string
	MinUDPPort uint16 // Minimum UDP port for WebRTC, 0 leaves the range unset
	MaxUDPPort uint16 // Maximum UDP port for WebRTC
}

// Validate validates the port range.
func (c Config) Validate() error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if c.MinUDPPort == 0 || c.MinUDPPort > c.MaxUDPPort {
		return fmt.Errorf("%d-%d: %w", c.MinUDPPort, c.MaxUDPPort, ErrInvalidPortRange)
	}
	return nil
}

// SetPortRange sets the ephemeral UDP port range for WebRTC.
func (c Config) SetPortRange(s *webrtc.SettingEngine) error {
	if c.MinUDPPort == 0 && c.MaxUDPPort == 0 {
		return nil
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.SetEphemeralUDPPortRange(c.MinUDPPort, c.MaxUDPPort); err != nil {
		return fmt.Errorf("failed to set ephemeral UDP port range: %w", err)
	}
	return nil
}

func (c Config) configuration() webrtc.Configuration {
	urls := c.ICEServers
	if len(urls) == 0 {
		urls = []string{DefaultICEServer}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: urls}},
	}
}
