package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// ReadWait bounds the silence between two client messages. Clients ping
	// well inside it; a camera alone streams one frame per second.
	ReadWait = 5 * time.Minute
)

// Writer serialises writes to one connection. gorilla/websocket allows a
// single concurrent writer.
type Writer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWriter wraps conn.
func NewWriter(conn *websocket.Conn) *Writer {
	return &Writer{conn: conn}
}

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func (w *Writer) WriteTyped(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func (w *Writer) WriteError(code, errMsg string) error {
	return w.WriteTyped(ErrorResponse{
		Event: EventError,
		Code:  code,
		Error: errMsg,
	})
}

// Close sends a close frame with reason.
func (w *Writer) Close(code int, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	return w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// ReadMessage reads the next frame. It sets a read deadline.
func ReadMessage(conn *websocket.Conn) (int, []byte, error) {
	conn.SetReadDeadline(time.Now().Add(ReadWait))
	return conn.ReadMessage()
}
