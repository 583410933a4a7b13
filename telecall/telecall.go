package telecall

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"telecall/calllog"
	"telecall/media"
	"telecall/media/device"
	"telecall/metric"
	"telecall/peer"
	"telecall/relay"
	"telecall/session"
	"telecall/signal"
)

const shutdownTimeout = 5 * time.Second

// Telecall contains the configuration and the shared services of one run.
type Telecall struct {
	conf    Config
	logger  *zap.Logger
	metrics *metric.Metrics

	source media.Source
	peers  peer.Factory
}

// Option customizes a Telecall.
type Option func(*Telecall)

// WithMediaSource replaces the camera and microphone.
func WithMediaSource(s media.Source) Option {
	return func(t *Telecall) { t.source = s }
}

// WithPeerFactory replaces the pion peer connections.
func WithPeerFactory(f peer.Factory) Option {
	return func(t *Telecall) { t.peers = f }
}

// New creates a new instance of Telecall.
func New(conf Config, logger *zap.Logger, opts ...Option) (*Telecall, error) {
	m, err := metric.New(conf.Metrics, prometheus.NewRegistry(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	t := &Telecall{
		conf:    conf,
		logger:  logger,
		metrics: m,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start runs the configured mode until ctx is done or, in call mode, the
// call ends.
func (t *Telecall) Start(ctx context.Context) error {
	t.metrics.Start()
	go t.metrics.UpdateSystemMetrics(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := t.metrics.Stop(stopCtx); err != nil {
			t.logger.Warn("failed to stop metrics server", zap.Error(err))
		}
	}()

	switch t.conf.Mode {
	case ModeRelay:
		return t.runRelay(ctx)
	case ModeCall:
		return t.runCall(ctx)
	default:
		return fmt.Errorf("%q: %w", t.conf.Mode, ErrInvalidMode)
	}
}

func (t *Telecall) runRelay(ctx context.Context) error {
	r := relay.New(t.conf.Relay, t.logger, t.metrics)

	errc := make(chan error, 1)
	go func() { errc <- r.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

func (t *Telecall) runCall(ctx context.Context) error {
	sig, err := t.conf.SignalConfig()
	if err != nil {
		return err
	}

	source := t.source
	if source == nil {
		source = device.New(t.conf.Media, t.logger)
	}
	peers := t.peers
	if peers == nil {
		f, err := peer.NewPionFactory(t.conf.Peer, t.logger)
		if err != nil {
			return err
		}
		peers = f
	}

	remote := media.NewRemote(media.DiscardSink{}, t.logger)
	call := t.conf.Call
	logger := t.logger.With(zap.String("user", call.UserID), zap.String("role", string(call.Role)))

	c := session.New(t.conf.Session, call.AppointmentID, call.RoomID, session.Dependencies{
		Media:     media.NewPipeline(source, t.logger),
		Remote:    remote,
		Signaling: signal.New(sig, t.logger, t.metrics),
		Peers:     peers,
		CallLog:   calllog.NewService(t.conf.CallLog, t.logger),
		Metrics:   t.metrics,
		Logger:    logger,
		OnStatus: func(status string) {
			logger.Info("call status", zap.String("status", status))
		},
		Navigate: func(reason session.NavigateReason) {
			logger.Info("left call", zap.String("reason", string(reason)))
		},
	})
	if err := c.Run(ctx); err != nil {
		return fmt.Errorf("failed to run call: %w", err)
	}

	audio, video, bytes := remote.Stats()
	logger.Info("call finished",
		zap.String("status", c.State().Status),
		zap.Uint64("audio_packets", audio),
		zap.Uint64("video_packets", video),
		zap.Uint64("bytes", bytes),
	)
	return nil
}
