// Package socket provides an interface for managing socket.
package socket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WebSocket wraps the gorilla/websocket connection. Writes are serialized
// because gorilla allows only one concurrent writer.
type WebSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// Upgrade creates a new WebSocket connection by upgrading the HTTP request.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	ug := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool {
			return true
		},
	}

	conn, err := ug.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade: %w", err)
	}
	return &WebSocket{
		conn: conn,
	}, nil
}

// Dial opens a client WebSocket connection to rawURL.
func Dial(ctx context.Context, rawURL string, header http.Header) (*WebSocket, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %d): %w", rawURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", rawURL, err)
	}
	return &WebSocket{
		conn: conn,
	}, nil
}

// Close closes the WebSocket connection.
func (s *WebSocket) Close() error {
	return s.conn.Close()
}

// WriteJSON sends a JSON message to the WebSocket connection.
func (s *WebSocket) WriteJSON(data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(data)
}

// ReadJSON reads a JSON message from the WebSocket connection and unmarshals it into the provided variable.
func (s *WebSocket) ReadJSON(v any) error {
	return s.conn.ReadJSON(v)
}
