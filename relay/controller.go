package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"telecall/auth"
	"telecall/metric"
	"telecall/pkg/socket"
	"telecall/relay/hub"
	"telecall/relay/room"
	"telecall/types/message"
)

// Below is the Error message for the controller.
var (
	ErrUnexpectedMessage = errors.New("unexpected message")
	ErrMissingRoom       = errors.New("missing room id")
)

const roomFullMessage = "Room is full (2 participants)"

// Controller runs the message loop of one websocket per participant.
type Controller struct {
	conf     Config
	registry *room.Registry
	hub      *hub.Hub
	logger   *zap.Logger
	metrics  *metric.Metrics
}

// NewController creates a new instance of Controller.
func NewController(conf Config, reg *room.Registry, h *hub.Hub, logger *zap.Logger, m *metric.Metrics) *Controller {
	return &Controller{
		conf:     conf,
		registry: reg,
		hub:      h,
		logger:   logger,
		metrics:  m,
	}
}

// Process serves a connection until it leaves or the socket fails. The
// first message must be a joinRoom request.
func (c *Controller) Process(ctx context.Context, sock socket.Socket, claims *auth.Claims) error {
	c.metrics.IncrementSignalingConnections()
	defer c.metrics.DecrementSignalingConnections()

	// 01. Build the context for the response goroutine
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 02. Admit the connection into its room
	member, sub, err := c.join(sock, claims)
	if err != nil {
		return fmt.Errorf("failed to join: %w", err)
	}
	defer c.leave(member)

	go c.sendResponse(ctx, sock, sub)

	if err := c.receiveRequest(sock, member); err != nil {
		return fmt.Errorf("failed to receive request: %w", err)
	}
	return nil
}

// join reads the joinRoom request, registers the member and acknowledges
// it before the rest of the room hears about it.
func (c *Controller) join(sock socket.Socket, claims *auth.Claims) (*room.Member, *hub.Subscription, error) {
	var req message.Envelope
	if err := sock.ReadJSON(&req); err != nil {
		return nil, nil, fmt.Errorf("failed to read join request: %w", err)
	}
	if req.Type != message.JoinRoom {
		c.reject(sock, req.RequestID, message.CodeBadRequest, fmt.Sprintf("expected %s, got %s", message.JoinRoom, req.Type))
		return nil, nil, fmt.Errorf("%s: %w", req.Type, ErrUnexpectedMessage)
	}
	var payload message.JoinRoomRequest
	if err := req.Decode(&payload); err != nil {
		c.reject(sock, req.RequestID, message.CodeBadRequest, "malformed join request")
		return nil, nil, fmt.Errorf("failed to decode join request: %w", err)
	}
	if payload.RoomID == "" {
		c.reject(sock, req.RequestID, message.CodeBadRequest, ErrMissingRoom.Error())
		return nil, nil, ErrMissingRoom
	}

	member, members, err := c.registry.Join(room.Member{
		ConnectionID:  shortuuid.New(),
		RoomID:        payload.RoomID,
		AppointmentID: payload.AppointmentID,
		UserID:        claims.UserID(),
		Role:          claims.Role,
		JoinedAt:      time.Now(),
	})
	if errors.Is(err, room.ErrRoomFull) {
		c.metrics.RoomFullRejected()
		full, _ := message.New(message.RoomFull, message.RoomFullPayload{Message: roomFullMessage})
		full.RequestID = req.RequestID
		if werr := sock.WriteJSON(full); werr != nil {
			c.logger.Debug("failed to send room full", zap.Error(werr))
		}
		return nil, nil, err
	}
	if err != nil {
		c.reject(sock, req.RequestID, message.CodeInternal, "unable to join room")
		return nil, nil, err
	}

	sub := c.hub.Register(member.ConnectionID)

	participants := make([]message.Participant, 0, len(members))
	for _, m := range members {
		participants = append(participants, m.Participant())
	}
	ack, err := message.New(message.Joined, message.JoinedPayload{
		ConnectionID:     member.ConnectionID,
		UserID:           member.UserID,
		Role:             member.Role,
		IsInitiator:      member.IsInitiator,
		ParticipantCount: len(members),
		Participants:     participants,
		SessionID:        member.SessionID,
	})
	if err == nil {
		ack.RequestID = req.RequestID
		err = sock.WriteJSON(ack)
	}
	if err != nil {
		c.leave(member)
		return nil, nil, fmt.Errorf("failed to send join acknowledgement: %w", err)
	}

	c.logger.Info("participant joined",
		zap.String("room", member.RoomID),
		zap.String("connection", member.ConnectionID),
		zap.String("user", member.UserID),
		zap.Bool("initiator", member.IsInitiator),
	)

	c.broadcast(members, member.ConnectionID, message.ParticipantJoined, member.Participant())
	c.broadcast(members, "", message.RoomUpdate, message.RoomUpdatePayload{ParticipantCount: len(members)})
	return member, sub, nil
}

// leave removes the member and tells the rest of the room. A sole
// survivor that was not the initiator is told it now is.
func (c *Controller) leave(member *room.Member) {
	c.hub.Unregister(member.ConnectionID)

	_, remaining, promoted, err := c.registry.Leave(member.ConnectionID)
	if err != nil {
		c.logger.Warn("failed to leave room", zap.String("connection", member.ConnectionID), zap.Error(err))
		return
	}
	c.logger.Info("participant left",
		zap.String("room", member.RoomID),
		zap.String("connection", member.ConnectionID),
		zap.Int("remaining", len(remaining)),
	)

	c.broadcast(remaining, "", message.ParticipantLeft, message.ParticipantLeftPayload{
		ConnectionID: member.ConnectionID,
		Reason:       "left",
		Remaining:    len(remaining),
	})
	c.broadcast(remaining, "", message.RoomUpdate, message.RoomUpdatePayload{ParticipantCount: len(remaining)})
	if promoted != nil {
		c.send(promoted.ConnectionID, message.RoleChanged, message.RoleChangedPayload{
			NewRole:     message.NegotiationInitiator,
			IsInitiator: true,
			Reason:      "peer left",
		})
	}
}

// sendResponse writes queued envelopes to the socket.
func (c *Controller) sendResponse(ctx context.Context, sock socket.Socket, sub *hub.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case env := <-sub.Receive():
			if err := sock.WriteJSON(env); err != nil {
				c.logger.Debug("failed to send response", zap.Error(err))
				return
			}
		}
	}
}

// receiveRequest reads from the websocket and calls handleRequest until
// the member leaves.
func (c *Controller) receiveRequest(sock socket.Socket, member *room.Member) error {
	for {
		var req message.Envelope
		if err := sock.ReadJSON(&req); err != nil {
			return fmt.Errorf("failed to parse envelope: %w", err)
		}
		if req.Type == message.Leave {
			return nil
		}
		if err := c.handleRequest(req, member); err != nil {
			c.logger.Debug("error handling request", zap.String("connection", member.ConnectionID), zap.Error(err))
			c.send(member.ConnectionID, message.Error, message.ErrorPayload{
				Code:    message.CodeBadRequest,
				Message: err.Error(),
			})
		}
	}
}

// handleRequest forwards relayed types to the rest of the room.
func (c *Controller) handleRequest(req message.Envelope, member *room.Member) error {
	if !req.Type.IsRelayed() {
		return fmt.Errorf("%s: %w", req.Type, ErrUnexpectedMessage)
	}

	members, err := c.registry.Members(member.RoomID)
	if err != nil {
		return err
	}
	req.From = member.ConnectionID
	req.RequestID = ""
	for _, m := range members {
		if m.ConnectionID == member.ConnectionID && !c.conf.Echo {
			continue
		}
		c.hub.Send(m.ConnectionID, req)
	}
	return nil
}

func (c *Controller) broadcast(members []*room.Member, except string, typ message.Type, payload any) {
	for _, m := range members {
		if m.ConnectionID == except {
			continue
		}
		c.send(m.ConnectionID, typ, payload)
	}
}

func (c *Controller) send(connectionID string, typ message.Type, payload any) {
	env, err := message.New(typ, payload)
	if err != nil {
		c.logger.Error("failed to encode message", zap.String("type", string(typ)), zap.Error(err))
		return
	}
	c.hub.Send(connectionID, env)
}

func (c *Controller) reject(sock socket.Socket, requestID, code, msg string) {
	env, err := message.New(message.Error, message.ErrorPayload{Code: code, Message: msg})
	if err != nil {
		return
	}
	env.RequestID = requestID
	if err := sock.WriteJSON(env); err != nil {
		c.logger.Debug("failed to send rejection", zap.Error(err))
	}
}
