package media

import (
	"errors"
	"fmt"
)

// Below is the Error message for the pipeline.
var (
	ErrAlreadyAcquired = errors.New("media already acquired")
	ErrNotAcquired     = errors.New("media not acquired")
	ErrReleased        = errors.New("media released")
	ErrNoDevice        = errors.New("no capture device available")
)

// AccessError reports that the camera or microphone could not be opened,
// either because permission was denied or no device exists. It is terminal
// for the attempt.
type AccessError struct {
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("camera/mic unavailable: %v", e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
