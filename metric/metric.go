// Package metric provides Prometheus metrics collection and monitoring.
//
// All methods are safe on a nil *Metrics so components can run without
// metrics in tests.
package metric

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"
)

// Metrics contains the Prometheus metrics server and registered custom metrics.
type Metrics struct {
	httpServer *http.Server
	config     Config
	logger     *zap.Logger
	gatherer   prometheus.Gatherer

	signalingConnections prometheus.Gauge
	peerConnections      prometheus.Gauge
	offers               prometheus.Counter
	collisions           prometheus.Counter
	droppedAnswers       prometheus.Counter
	reconnects           prometheus.Counter
	roomFull             prometheus.Counter
	transitions          *prometheus.CounterVec
	cpuUsage             prometheus.Gauge
	memoryUsage          prometheus.Gauge
}

// New creates a new Metrics instance and registers its collectors with reg.
func New(config Config, reg *prometheus.Registry, logger *zap.Logger) (*Metrics, error) {
	ns := DefaultMetricNamespace
	m := &Metrics{
		config:   config,
		logger:   logger.Named("metric"),
		gatherer: reg,
		signalingConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "signaling_connections",
			Help:      "Current number of signaling WebSocket connections.",
		}),
		peerConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "peer_connections",
			Help:      "Current number of live WebRTC peer connections.",
		}),
		offers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "offers_total",
			Help:      "SDP offers created and sent.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "offer_collisions_ignored_total",
			Help:      "Remote offers ignored by the impolite side on collision.",
		}),
		droppedAnswers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "answers_dropped_total",
			Help:      "Stale or duplicate answers discarded.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts scheduled after transport failure.",
		}),
		roomFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "room_full_rejections_total",
			Help:      "Join attempts rejected because the room was at capacity.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "session_transitions_total",
			Help:      "Session connection state changes by target state.",
		}, []string{"state"}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "cpu_usage_percentage",
			Help:      "CPU usage percentage.",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "memory_usage_bytes",
			Help:      "Current memory usage in bytes.",
		}),
	}

	collectors := []prometheus.Collector{
		m.signalingConnections, m.peerConnections, m.offers, m.collisions,
		m.droppedAnswers, m.reconnects, m.roomFull, m.transitions,
		m.cpuUsage, m.memoryUsage,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Start initializes and starts the metrics HTTP server.
func (m *Metrics) Start() {
	if m == nil || m.config.Port == 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	m.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.config.Port),
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           mux,
	}

	go func() {
		m.logger.Info("starting metrics server", zap.Int("port", m.config.Port), zap.String("path", m.config.Path))
		if err := m.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (m *Metrics) Stop(ctx context.Context) error {
	if m == nil || m.httpServer == nil {
		return nil
	}
	m.logger.Info("stopping metrics server", zap.Int("port", m.config.Port))
	return m.httpServer.Shutdown(ctx)
}

// UpdateSystemMetrics samples host CPU and memory usage every interval
// until ctx is done.
func (m *Metrics) UpdateSystemMetrics(ctx context.Context) {
	if m == nil {
		return
	}
	interval := m.config.SampleInterval
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.sample()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Metrics) sample() {
	if vm, err := mem.VirtualMemory(); err == nil {
		m.memoryUsage.Set(float64(vm.Used))
	} else {
		m.logger.Debug("failed to read memory usage", zap.Error(err))
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.cpuUsage.Set(pct[0])
	} else if err != nil {
		m.logger.Debug("failed to read cpu usage", zap.Error(err))
	}
}

// IncrementSignalingConnections increments the signaling connection count.
func (m *Metrics) IncrementSignalingConnections() {
	if m != nil {
		m.signalingConnections.Inc()
	}
}

// DecrementSignalingConnections decrements the signaling connection count.
func (m *Metrics) DecrementSignalingConnections() {
	if m != nil {
		m.signalingConnections.Dec()
	}
}

// IncrementPeerConnections increments the WebRTC connection count.
func (m *Metrics) IncrementPeerConnections() {
	if m != nil {
		m.peerConnections.Inc()
	}
}

// DecrementPeerConnections decrements the WebRTC connection count.
func (m *Metrics) DecrementPeerConnections() {
	if m != nil {
		m.peerConnections.Dec()
	}
}

// OfferSent counts an offer.
func (m *Metrics) OfferSent() {
	if m != nil {
		m.offers.Inc()
	}
}

// CollisionIgnored counts a remote offer dropped on collision.
func (m *Metrics) CollisionIgnored() {
	if m != nil {
		m.collisions.Inc()
	}
}

// AnswerDropped counts a stale answer.
func (m *Metrics) AnswerDropped() {
	if m != nil {
		m.droppedAnswers.Inc()
	}
}

// ReconnectScheduled counts a reconnection attempt.
func (m *Metrics) ReconnectScheduled() {
	if m != nil {
		m.reconnects.Inc()
	}
}

// RoomFullRejected counts a join rejected at capacity.
func (m *Metrics) RoomFullRejected() {
	if m != nil {
		m.roomFull.Inc()
	}
}

// Transition counts a change into state.
func (m *Metrics) Transition(state string) {
	if m != nil {
		m.transitions.WithLabelValues(state).Inc()
	}
}
