package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// Handler processes one inbound envelope. Handlers for a single channel are
// invoked sequentially in arrival order; a slow handler delays everything
// behind it, which is exactly the serialization the session store relies on.
type Handler func(env *protocol.Envelope)

// Channel is a bidirectional, event-named message channel to one server
// process. Implementations reconnect automatically; callers re-establish
// the logical session via the reconnect hook.
type Channel interface {
	// Connect establishes the connection and starts the pump goroutines.
	// It returns once the first connection attempt resolves.
	Connect(ctx context.Context) error
	// Emit sends one event. Delivery is best-effort: a full send buffer
	// drops the message rather than blocking the caller.
	Emit(eventType protocol.EventType, payload interface{}) error
	// On registers a handler for an event type. Multiple handlers per type
	// are invoked in registration order.
	On(eventType protocol.EventType, h Handler)
	// OnReconnect registers a hook invoked after every re-established
	// connection (not the initial connect).
	OnReconnect(hook func())
	// Close tears the connection down and stops reconnecting.
	Close() error
}

// Errors reported by Emit.
var (
	ErrChannelClosed = errors.New("transport: channel closed")
	ErrSendFull      = errors.New("transport: send buffer full, message dropped")
)

// Config holds websocket channel settings.
type Config struct {
	URL             string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
	ReconnectWait   time.Duration
	MaxReconnectGap time.Duration
	RequestHeader   http.Header
}

// DefaultConfig returns default websocket channel configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		SendBufferSize:  256,
		ReconnectWait:   time.Second,
		MaxReconnectGap: 30 * time.Second,
	}
}
