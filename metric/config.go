package metric

import (
	"errors"
	"fmt"
	"time"
)

// Default values for metrics configuration.
const (
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
	DefaultSampleInterval  = 5 * time.Second
	DefaultMetricNamespace = "telecall"
)

// ErrInvalidMetricsPort is returned for an out of range port.
var ErrInvalidMetricsPort = errors.New("invalid metrics port")

// Config defines the configuration for the metrics server.
type Config struct {
	Port           int           // Port for metrics server, 0 disables it
	Path           string        // Path for metrics endpoint
	SampleInterval time.Duration // Interval between host resource samples
}

// Validate validates the metrics port.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("must be between 0 and 65535, given %d: %w", c.Port, ErrInvalidMetricsPort)
	}
	return nil
}
