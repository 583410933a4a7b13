package relay

import (
	"net/http"

	"go.uber.org/zap"

	"telecall/auth"
	"telecall/pkg/socket"
	"telecall/relay/middleware"
)

// SocketHandler upgrades authenticated requests and hands them to the
// controller.
type SocketHandler struct {
	controller *Controller
	logger     *zap.Logger
}

// NewSocketHandler creates a new SocketHandler.
func NewSocketHandler(con *Controller, logger *zap.Logger) *SocketHandler {
	return &SocketHandler{
		controller: con,
		logger:     logger,
	}
}

// ServeHTTP serves the websocket until the participant leaves.
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, auth.ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}

	s, err := socket.Upgrade(w, r)
	if err != nil {
		h.logger.Warn("failed to create websocket", zap.Error(err))
		return
	}
	defer func() {
		if err := s.Close(); err != nil {
			h.logger.Debug("failed to close websocket", zap.Error(err))
		}
	}()

	if err := h.controller.Process(r.Context(), s, claims); err != nil {
		h.logger.Debug("websocket closed", zap.String("user", claims.UserID()), zap.Error(err))
	}
}
