package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// Frame wraps one raw inbound WebSocket message.
type Frame struct {
	Type       int       // websocket.BinaryMessage or websocket.TextMessage
	Data       []byte    // Raw message bytes
	ReceivedAt time.Time // Local timestamp when ReadMessage returned
}

// ClientConfig configures a single WebSocket connection.
type ClientConfig struct {
	URL              string        // Fully-formed feed URL including credentials
	HandshakeTimeout time.Duration // Dial timeout
	KeepAlive        time.Duration // Ping interval
	PingTimeout      time.Duration // Max silence before the connection is considered stale
	WriteTimeout     time.Duration // Write deadline for sends
	ReadBufferSize   int           // Socket read buffer; sized for burst frames
	FrameBufferSize  int           // Frames channel capacity
}

// DefaultClientConfig returns sensible defaults for a high-volume feed.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		KeepAlive:        2500 * time.Millisecond,
		PingTimeout:      30 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadBufferSize:   1 << 20,
		FrameBufferSize:  4096,
	}
}
