// Package signal is the client side of the signaling channel: it connects
// to the relay, joins a room and exchanges negotiation messages.
package signal

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	// DefaultJoinTimeout bounds the wait for a join acknowledgement.
	DefaultJoinTimeout = 10 * time.Second
	// DefaultURL is the relay endpoint used when none is configured.
	DefaultURL = "ws://localhost:7070/ws"
)

// Below is the Error message for the client configuration.
var (
	ErrInvalidURL   = errors.New("invalid signaling url")
	ErrMissingToken = errors.New("missing signaling token")
)

// Config is the configuration for creating a Client instance.
type Config struct {
	URL         string
	Token       string
	JoinTimeout time.Duration
}

// Validate validates the relay url and the credential.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%s: %w", c.URL, ErrInvalidURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, given %q: %w", u.Scheme, ErrInvalidURL)
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}
