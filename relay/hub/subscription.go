package hub

import (
	"sync"

	"telecall/types/message"
)

// Subscription is the outbound queue of a single connection.
type Subscription struct {
	queue  chan message.Envelope
	closed chan struct{}
	once   sync.Once
}

// NewSubscription creates a subscription buffering up to size envelopes.
func NewSubscription(size int) *Subscription {
	return &Subscription{
		queue:  make(chan message.Envelope, size),
		closed: make(chan struct{}),
	}
}

// Send queues env. It blocks while the queue is full and returns false
// once the subscription is closed.
func (s *Subscription) Send(env message.Envelope) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case <-s.closed:
		return false
	case s.queue <- env:
		return true
	}
}

// Receive returns the queue of the subscription.
func (s *Subscription) Receive() <-chan message.Envelope {
	return s.queue
}

// Done is closed when the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.closed
}

// Close closes the subscription. The queue itself is left open so that a
// concurrent Send never panics.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)
	})
}
