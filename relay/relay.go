package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"telecall/metric"
	"telecall/relay/hub"
	"telecall/relay/middleware"
	"telecall/relay/room"
)

// Relay contains the server and configuration.
type Relay struct {
	server  *http.Server
	conf    Config
	logger  *zap.Logger
	handler http.Handler
}

// New creates a new instance of Relay.
func New(conf Config, logger *zap.Logger, m *metric.Metrics) *Relay {
	logger = logger.Named("relay")
	con := NewController(conf, room.New(), hub.New(), logger, m)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.Set(
		NewSocketHandler(con, logger),
		middleware.NewAuth([]byte(conf.Secret), logger),
		middleware.NewLogger(logger),
		middleware.NewCORS(),
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Relay{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", conf.Port),
			ReadHeaderTimeout: 2 * time.Second,
			Handler:           mux,
		},
		conf:    conf,
		logger:  logger,
		handler: mux,
	}
}

// Handler returns the routes of the relay.
func (r *Relay) Handler() http.Handler {
	return r.handler
}

// Start runs the relay server. It returns nil after Shutdown.
func (r *Relay) Start() error {
	var err error
	if r.conf.CertFile == "" || r.conf.KeyFile == "" {
		r.logger.Info("starting relay without TLS", zap.Int("port", r.conf.Port))
		err = r.server.ListenAndServe()
	} else {
		r.logger.Info("starting relay with TLS", zap.Int("port", r.conf.Port))
		err = r.server.ListenAndServeTLS(r.conf.CertFile, r.conf.KeyFile)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections. Upgraded websockets are not
// tracked by the server and end with their process.
func (r *Relay) Shutdown(ctx context.Context) error {
	if err := r.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
