// Package logging builds the zap loggers used across the application.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a production logger, or a development logger when debug is set.
func New(debug bool) (*zap.Logger, error) {
	var conf zap.Config
	if debug {
		conf = zap.NewDevelopmentConfig()
		conf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		conf = zap.NewProductionConfig()
		conf.EncoderConfig.TimeKey = "time"
		conf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, err := conf.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
