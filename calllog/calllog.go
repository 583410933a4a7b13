// Package calllog records the start and end of a consultation with the
// call-log service.
package calllog

//go:generate mockgen -destination=mock_calllog.go -package=calllog telecall/calllog Service

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Service starts and ends call logs.
type Service interface {
	StartLog(ctx context.Context, appointmentID, roomID string) (string, error)
	EndLog(ctx context.Context, logID string) error
}

// Error reports a failed call-log request.
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("call log %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("call log %s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type startRequest struct {
	AppointmentID string `json:"appointmentId"`
	RoomID        string `json:"roomId"`
}

type startResponse struct {
	ID string `json:"id"`
}

// Client talks to the call-log service over REST.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New creates a new client.
func New(conf Config, logger *zap.Logger) *Client {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(conf.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if conf.Token != "" {
		c.SetAuthToken(conf.Token)
	}
	return &Client{
		http:   c,
		logger: logger.Named("calllog"),
	}
}

// NewService returns a Client when conf is enabled and a Noop otherwise.
func NewService(conf Config, logger *zap.Logger) Service {
	if !conf.Enabled() {
		return Noop{}
	}
	return New(conf, logger)
}

// StartLog opens a call log and returns its id.
func (c *Client) StartLog(ctx context.Context, appointmentID, roomID string) (string, error) {
	var res startResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(startRequest{AppointmentID: appointmentID, RoomID: roomID}).
		SetResult(&res).
		Post("/call-logs")
	if err != nil {
		return "", &Error{Op: "start", Err: err}
	}
	if resp.IsError() {
		return "", &Error{Op: "start", StatusCode: resp.StatusCode()}
	}
	if res.ID == "" {
		return "", &Error{Op: "start", StatusCode: resp.StatusCode(), Err: fmt.Errorf("empty log id")}
	}
	c.logger.Debug("call log started", zap.String("log", res.ID), zap.String("room", roomID))
	return res.ID, nil
}

// EndLog closes the call log.
func (c *Client) EndLog(ctx context.Context, logID string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", logID).
		Post("/call-logs/{id}/end")
	if err != nil {
		return &Error{Op: "end", Err: err}
	}
	if resp.IsError() {
		return &Error{Op: "end", StatusCode: resp.StatusCode()}
	}
	c.logger.Debug("call log ended", zap.String("log", logID))
	return nil
}

// Noop is used when no call-log service is configured.
type Noop struct{}

// StartLog returns an empty id.
func (Noop) StartLog(context.Context, string, string) (string, error) {
	return "", nil
}

// EndLog does nothing.
func (Noop) EndLog(context.Context, string) error {
	return nil
}
