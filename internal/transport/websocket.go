package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// WebsocketChannel is the Channel implementation over a single websocket
// connection to the game server. One read pump dispatches inbound envelopes
// in arrival order; one write pump serializes outbound traffic and pings.
type WebsocketChannel struct {
	config Config

	mu             sync.RWMutex
	handlers       map[protocol.EventType][]Handler
	reconnectHooks []func()
	closed         bool

	send   chan []byte
	done   chan struct{}
	cancel context.CancelFunc
}

// NewWebsocketChannel creates a channel with the given configuration.
func NewWebsocketChannel(config Config) *WebsocketChannel {
	return &WebsocketChannel{
		config:   config,
		handlers: make(map[protocol.EventType][]Handler),
		send:     make(chan []byte, config.SendBufferSize),
		done:     make(chan struct{}),
	}
}

// On registers a handler for an event type.
func (c *WebsocketChannel) On(eventType protocol.EventType, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], h)
}

// OnReconnect registers a hook invoked after every re-established connection.
func (c *WebsocketChannel) OnReconnect(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnectHooks = append(c.reconnectHooks, hook)
}

// Connect dials the server and starts the connection loop. The loop keeps
// redialing with exponential backoff until Close or context cancellation.
func (c *WebsocketChannel) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return ErrChannelClosed
	}
	c.cancel = cancel
	c.mu.Unlock()

	conn, err := c.dial(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("connect to %s: %w", c.config.URL, err)
	}

	go c.run(runCtx, conn)
	return nil
}

// Emit sends one event. A full send buffer drops the message with a warning
// rather than blocking; the next state broadcast simply carries the current
// value.
func (c *WebsocketChannel) Emit(eventType protocol.EventType, payload interface{}) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrChannelClosed
	}

	env, err := protocol.NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	select {
	case c.send <- data:
		return nil
	default:
		log.Warn().Str("event_type", string(eventType)).Msg("send buffer full, dropping message")
		return ErrSendFull
	}
}

// Close tears the connection down and stops reconnecting.
func (c *WebsocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(c.done)
	return nil
}

// Done is closed when the channel has shut down.
func (c *WebsocketChannel) Done() <-chan struct{} {
	return c.done
}

func (c *WebsocketChannel) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.WriteTimeout}
	conn, _, err := dialer.DialContext(ctx, c.config.URL, c.config.RequestHeader)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(c.config.MaxMessageSize)
	return conn, nil
}

// run owns the connection lifecycle: pump until the connection dies, then
// redial with backoff and fire the reconnect hooks.
func (c *WebsocketChannel) run(ctx context.Context, conn *websocket.Conn) {
	first := true
	for {
		if conn == nil {
			var err error
			conn, err = c.redial(ctx)
			if err != nil {
				log.Info().Msg("transport shutting down")
				return
			}
		}

		if !first {
			c.fireReconnectHooks()
		}
		first = false

		c.pump(ctx, conn)
		conn.Close()
		conn = nil

		select {
		case <-ctx.Done():
			log.Info().Msg("transport shutting down")
			return
		default:
		}
	}
}

// redial retries the dial with exponential backoff until it succeeds or the
// context is cancelled.
func (c *WebsocketChannel) redial(ctx context.Context) (*websocket.Conn, error) {
	wait := c.config.ReconnectWait
	for attempt := 1; ; attempt++ {
		conn, err := c.dial(ctx)
		if err == nil {
			log.Info().Int("attempt", attempt).Str("url", c.config.URL).Msg("reconnected")
			return conn, nil
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("reconnect failed")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > c.config.MaxReconnectGap {
			wait = c.config.MaxReconnectGap
		}
	}
}

// pump runs the read loop on the calling goroutine and the write loop on a
// child goroutine; it returns when either side fails.
func (c *WebsocketChannel) pump(ctx context.Context, conn *websocket.Conn) {
	writeDone := make(chan struct{})
	writeCtx, stopWriter := context.WithCancel(ctx)
	defer stopWriter()

	go func() {
		defer close(writeDone)
		c.writePump(writeCtx, conn)
	}()

	c.readPump(conn)
	stopWriter()
	<-writeDone
}

func (c *WebsocketChannel) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		c.dispatch(message)
	}
}

func (c *WebsocketChannel) writePump(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}
		}
	}
}

// dispatch parses an inbound frame and invokes every handler registered for
// its event type, in registration order, on the read-pump goroutine.
func (c *WebsocketChannel) dispatch(message []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Error().Err(err).Msg("failed to unmarshal envelope")
		return
	}

	c.mu.RLock()
	handlers := make([]Handler, len(c.handlers[env.Type]))
	copy(handlers, c.handlers[env.Type])
	c.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debug().Str("event_type", string(env.Type)).Msg("no handlers registered, ignoring event")
		return
	}

	for _, h := range handlers {
		h(&env)
	}
}

func (c *WebsocketChannel) fireReconnectHooks() {
	c.mu.RLock()
	hooks := make([]func(), len(c.reconnectHooks))
	copy(hooks, c.reconnectHooks)
	c.mu.RUnlock()

	for _, hook := range hooks {
		hook()
	}
}
