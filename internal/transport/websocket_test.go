package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// loopbackServer is a minimal stand-in for the game server: it upgrades,
// echoes frames into inbound, and writes whatever is pushed to outbound.
type loopbackServer struct {
	srv      *httptest.Server
	inbound  chan *protocol.Envelope
	outbound chan *protocol.Envelope
	conns    atomic.Int32
	dropNext atomic.Bool
}

func newLoopbackServer(t *testing.T) *loopbackServer {
	t.Helper()
	ls := &loopbackServer{
		inbound:  make(chan *protocol.Envelope, 64),
		outbound: make(chan *protocol.Envelope, 64),
	}

	ls.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ls.conns.Add(1)

		if ls.dropNext.CompareAndSwap(true, false) {
			conn.Close()
			return
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, message, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var env protocol.Envelope
				if err := json.Unmarshal(message, &env); err == nil {
					ls.inbound <- &env
				}
			}
		}()

		for {
			select {
			case <-done:
				conn.Close()
				return
			case env := <-ls.outbound:
				data, err := json.Marshal(env)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					conn.Close()
					return
				}
			}
		}
	}))
	t.Cleanup(ls.srv.Close)
	return ls
}

func (ls *loopbackServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ls.srv.URL, "http")
}

func (ls *loopbackServer) send(t *testing.T, eventType protocol.EventType, payload interface{}) {
	t.Helper()
	env, err := protocol.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	ls.outbound <- env
}

func connectedChannel(t *testing.T, ls *loopbackServer) *WebsocketChannel {
	t.Helper()
	cfg := DefaultConfig(ls.wsURL())
	cfg.ReconnectWait = 10 * time.Millisecond
	ch := NewWebsocketChannel(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, ch.Connect(ctx))
	t.Cleanup(func() { ch.Close() })
	return ch
}

func TestEmitReachesServer(t *testing.T) {
	ls := newLoopbackServer(t)
	ch := connectedChannel(t, ls)

	require.NoError(t, ch.Emit(protocol.EventTypeJoinGame, protocol.JoinGamePayload{
		Username: "alice", GameID: "ABCD",
	}))

	select {
	case env := <-ls.inbound:
		assert.Equal(t, protocol.EventTypeJoinGame, env.Type)
		var join protocol.JoinGamePayload
		require.NoError(t, json.Unmarshal(env.Data, &join))
		assert.Equal(t, "alice", join.Username)
		assert.NotEmpty(t, env.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the event")
	}
}

func TestDispatchPreservesArrivalOrder(t *testing.T) {
	ls := newLoopbackServer(t)
	ch := connectedChannel(t, ls)

	received := make(chan int, 16)
	ch.On(protocol.EventTypePointsUpdate, func(env *protocol.Envelope) {
		var p protocol.PointsUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err == nil {
			received <- p.Points
		}
	})

	for i := 1; i <= 5; i++ {
		ls.send(t, protocol.EventTypePointsUpdate, protocol.PointsUpdatePayload{Username: "alice", Points: i})
	}

	for want := 1; want <= 5; want++ {
		select {
		case got := <-received:
			assert.Equal(t, want, got, "per-connection delivery order preserved")
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d never arrived", want)
		}
	}
}

func TestMultipleHandlersInvokedInRegistrationOrder(t *testing.T) {
	ls := newLoopbackServer(t)
	ch := connectedChannel(t, ls)

	order := make(chan string, 4)
	ch.On(protocol.EventTypeGameStarted, func(*protocol.Envelope) { order <- "first" })
	ch.On(protocol.EventTypeGameStarted, func(*protocol.Envelope) { order <- "second" })

	ls.send(t, protocol.EventTypeGameStarted, protocol.GameStartedPayload{GameID: "ABCD"})

	for _, want := range []string{"first", "second"} {
		select {
		case got := <-order:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatal("handler never invoked")
		}
	}
}

func TestReconnectFiresHookAndRestoresTraffic(t *testing.T) {
	ls := newLoopbackServer(t)

	cfg := DefaultConfig(ls.wsURL())
	cfg.ReconnectWait = 10 * time.Millisecond
	ch := NewWebsocketChannel(cfg)

	reconnected := make(chan struct{}, 4)
	ch.OnReconnect(func() { reconnected <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Connect(ctx))
	defer ch.Close()

	// Server drops the next connection attempt too, exercising backoff.
	ls.dropNext.Store(true)

	// Force-close the live connection server-side.
	ls.srv.CloseClientConnections()

	select {
	case <-reconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("reconnect hook never fired")
	}
	assert.GreaterOrEqual(t, ls.conns.Load(), int32(2), "client redialed")

	// Traffic flows again after the reconnect.
	got := make(chan struct{}, 1)
	ch.On(protocol.EventTypeRoomUpdate, func(*protocol.Envelope) { got <- struct{}{} })
	ls.send(t, protocol.EventTypeRoomUpdate, protocol.RoomUpdatePayload{GameID: "ABCD"})

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("no traffic after reconnect")
	}
}

func TestEmitAfterCloseFails(t *testing.T) {
	ls := newLoopbackServer(t)
	ch := connectedChannel(t, ls)

	require.NoError(t, ch.Close())
	err := ch.Emit(protocol.EventTypeLeaveGame, protocol.JoinGamePayload{})
	assert.ErrorIs(t, err, ErrChannelClosed)
}
