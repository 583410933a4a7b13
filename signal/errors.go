package signal

import (
	"errors"
	"fmt"
)

// Below is the Error message for the client.
var (
	ErrNotConnected = errors.New("signaling not connected")
	ErrClosed       = errors.New("signaling closed")
)

// JoinError reports a rejected or failed join.
type JoinError struct {
	Code    string
	Message string
	Err     error
}

func (e *JoinError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("failed to join room: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("failed to join room: %s: %s", e.Code, e.Message)
	default:
		return fmt.Sprintf("failed to join room: %s", e.Message)
	}
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// RoomFullError reports a join rejected because the room holds two
// participants already. It is not retried.
type RoomFullError struct {
	Message string
}

func (e *RoomFullError) Error() string {
	if e.Message == "" {
		return "room is full"
	}
	return e.Message
}
