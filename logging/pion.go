package logging

import (
	"fmt"

	pionlog "github.com/pion/logging"
	"go.uber.org/zap"
)

// PionFactory routes pion's internal logs into zap. Trace goes to debug.
type PionFactory struct {
	logger *zap.Logger
}

// NewPionFactory returns a pion LoggerFactory backed by logger.
func NewPionFactory(logger *zap.Logger) *PionFactory {
	return &PionFactory{logger: logger.Named("pion")}
}

// NewLogger implements pionlog.LoggerFactory.
func (f *PionFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return &pionLogger{log: f.logger.Named(scope).Sugar()}
}

type pionLogger struct {
	log *zap.SugaredLogger
}

func (l *pionLogger) Trace(msg string)                          { l.log.Debug(msg) }
func (l *pionLogger) Tracef(format string, args ...interface{}) { l.log.Debug(fmt.Sprintf(format, args...)) }
func (l *pionLogger) Debug(msg string)                          { l.log.Debug(msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *pionLogger) Info(msg string)                           { l.log.Info(msg) }
func (l *pionLogger) Infof(format string, args ...interface{})  { l.log.Infof(format, args...) }
func (l *pionLogger) Warn(msg string)                           { l.log.Warn(msg) }
func (l *pionLogger) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *pionLogger) Error(msg string)                          { l.log.Error(msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }
