package calllog

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultTimeout bounds a single call-log request.
const DefaultTimeout = 5 * time.Second

// ErrInvalidBaseURL is returned for a base url that is not http(s).
var ErrInvalidBaseURL = errors.New("invalid call-log base url")

// Config is the configuration of the call-log client. An empty BaseURL
// disables call logging.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Enabled reports whether a call-log service is configured.
func (c Config) Enabled() bool {
	return c.BaseURL != ""
}

// Validate validates the base url.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q: %w", c.BaseURL, ErrInvalidBaseURL)
	}
	return nil
}
