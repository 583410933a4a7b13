package signal

import (
	"context"
	"fmt"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"

	"telecall/auth"
	"telecall/metric"
	"telecall/pkg/socket"
	"telecall/types/message"
)

const eventBuffer = 64

// Dialer opens the socket to the relay.
type Dialer func(ctx context.Context, url, token string) (socket.Socket, error)

// DialWebSocket dials the relay with a bearer token.
func DialWebSocket(ctx context.Context, url, token string) (socket.Socket, error) {
	return socket.Dial(ctx, url, auth.Header(token))
}

// Client holds one signaling channel.
type Client struct {
	conf    Config
	dial    Dialer
	logger  *zap.Logger
	metrics *metric.Metrics

	events chan message.Envelope
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	sock    socket.Socket
	connID  string
	pending map[string]chan message.Envelope
}

// New creates a client dialing over websocket.
func New(conf Config, logger *zap.Logger, m *metric.Metrics) *Client {
	return NewWithDialer(conf, DialWebSocket, logger, m)
}

// NewWithDialer creates a client with a custom dialer.
func NewWithDialer(conf Config, dial Dialer, logger *zap.Logger, m *metric.Metrics) *Client {
	if conf.JoinTimeout <= 0 {
		conf.JoinTimeout = DefaultJoinTimeout
	}
	return &Client{
		conf:    conf,
		dial:    dial,
		logger:  logger.Named("signal"),
		metrics: m,
		events:  make(chan message.Envelope, eventBuffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan message.Envelope),
	}
}

// Connect opens the channel and starts reading. Events is closed when the
// channel ends.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	sock, err := c.dial(ctx, c.conf.URL, c.conf.Token)
	if err != nil {
		return fmt.Errorf("failed to connect signaling: %w", err)
	}
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		_ = sock.Close()
		return ErrClosed
	default:
	}
	c.sock = sock
	c.mu.Unlock()

	c.metrics.IncrementSignalingConnections()
	c.logger.Info("signaling connected", zap.String("url", c.conf.URL))
	go c.readLoop(sock)
	return nil
}

// JoinRoom joins the room and waits for the acknowledgement. A full room
// yields *RoomFullError, any other rejection *JoinError.
func (c *Client) JoinRoom(ctx context.Context, appointmentID, roomID string) (message.JoinedPayload, error) {
	env, err := message.New(message.JoinRoom, message.JoinRoomRequest{
		AppointmentID: appointmentID,
		RoomID:        roomID,
	})
	if err != nil {
		return message.JoinedPayload{}, &JoinError{Err: err}
	}
	env.RequestID = shortuuid.New()

	ack := make(chan message.Envelope, 1)
	c.mu.Lock()
	c.pending[env.RequestID] = ack
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, env.RequestID)
		c.mu.Unlock()
	}()

	if err := c.write(env); err != nil {
		return message.JoinedPayload{}, &JoinError{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.conf.JoinTimeout)
	defer cancel()

	var res message.Envelope
	select {
	case res = <-ack:
	case <-c.done:
		return message.JoinedPayload{}, &JoinError{Err: ErrClosed}
	case <-ctx.Done():
		return message.JoinedPayload{}, &JoinError{Err: ctx.Err()}
	}

	switch res.Type {
	case message.Joined:
		var joined message.JoinedPayload
		if err := res.Decode(&joined); err != nil {
			return message.JoinedPayload{}, &JoinError{Err: err}
		}
		c.mu.Lock()
		c.connID = joined.ConnectionID
		c.mu.Unlock()
		c.logger.Info("room joined",
			zap.String("room", roomID),
			zap.String("connection", joined.ConnectionID),
			zap.Bool("initiator", joined.IsInitiator),
			zap.Int("participants", joined.ParticipantCount),
		)
		return joined, nil
	case message.RoomFull:
		var full message.RoomFullPayload
		_ = res.Decode(&full)
		c.metrics.RoomFullRejected()
		return message.JoinedPayload{}, &RoomFullError{Message: full.Message}
	case message.Error:
		var e message.ErrorPayload
		_ = res.Decode(&e)
		return message.JoinedPayload{}, &JoinError{Code: e.Code, Message: e.Message}
	default:
		return message.JoinedPayload{}, &JoinError{Message: fmt.Sprintf("unexpected acknowledgement %s", res.Type)}
	}
}

// Send sends a message stamped with the local connection id.
func (c *Client) Send(typ message.Type, payload any) error {
	env, err := message.New(typ, payload)
	if err != nil {
		return err
	}
	env.From = c.ConnectionID()
	return c.write(env)
}

// Events delivers every message that is not a request acknowledgement.
func (c *Client) Events() <-chan message.Envelope {
	return c.events
}

// Done is closed once the channel is disconnected.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ConnectionID returns the id assigned by the relay, empty before join.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Disconnect announces the departure and closes the channel. It is
// idempotent.
func (c *Client) Disconnect() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		sock := c.sock
		close(c.done)
		c.mu.Unlock()
		if sock != nil {
			if env, e := message.New(message.Leave, nil); e == nil {
				_ = sock.WriteJSON(env)
			}
			err = sock.Close()
		}
		c.logger.Info("signaling disconnected")
	})
	return err
}

func (c *Client) write(env message.Envelope) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return ErrNotConnected
	}
	if err := sock.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to write %s: %w", env.Type, err)
	}
	return nil
}

// readLoop routes acknowledgements to their waiting request and every
// other message to Events. A read error ends the channel.
func (c *Client) readLoop(sock socket.Socket) {
	defer func() {
		close(c.events)
		c.metrics.DecrementSignalingConnections()
		_ = c.Disconnect()
	}()

	for {
		var env message.Envelope
		if err := sock.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("signaling read failed", zap.Error(err))
			}
			return
		}

		if env.RequestID != "" {
			c.mu.Lock()
			ack, ok := c.pending[env.RequestID]
			c.mu.Unlock()
			if ok {
				select {
				case ack <- env:
				default:
				}
				continue
			}
		}

		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}
