package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// chanEmitter delivers emitted events to a channel so tests can observe the
// engine's broadcasts without polling.
type chanEmitter struct {
	events chan emitted
}

type emitted struct {
	Type    protocol.EventType
	Payload interface{}
}

func newChanEmitter() *chanEmitter {
	return &chanEmitter{events: make(chan emitted, 64)}
}

func (e *chanEmitter) Emit(eventType protocol.EventType, payload interface{}) error {
	e.events <- emitted{Type: eventType, Payload: payload}
	return nil
}

func (e *chanEmitter) next(t *testing.T) emitted {
	t.Helper()
	select {
	case ev := <-e.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
		return emitted{}
	}
}

func (e *chanEmitter) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-e.events:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSeedSeconds(t *testing.T) {
	settings := &protocol.GameSettings{GameTimeMins: 20}
	recipe := &protocol.Recipe{BakeTimeMins: 45}

	assert.Equal(t, 1200, SeedSeconds(settings, recipe), "game settings win")
	assert.Equal(t, 2700, SeedSeconds(nil, recipe), "recipe bake time next")
	assert.Equal(t, 2700, SeedSeconds(&protocol.GameSettings{}, recipe), "zero settings ignored")
	assert.Equal(t, FallbackSeconds, SeedSeconds(nil, nil), "fallback last")
}

func TestHostArmDelayBeforeFirstTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	em := newChanEmitter()
	engine := NewHostEngine(clock, em, "ABCD")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine.Start(ctx, &protocol.GameSettings{GameTimeMins: 1}, nil)

	clock.BlockUntil(1) // arm timer registered

	// Inside the arm delay nothing ticks.
	clock.Advance(ArmDelay - time.Second)
	em.expectNone(t)

	clock.Advance(time.Second) // arm delay elapses
	clock.BlockUntil(1)        // ticker registered
	clock.Advance(TickInterval)

	ev := em.next(t)
	require.Equal(t, protocol.EventTypeTimerUpdate, ev.Type)
	state := ev.Payload.(protocol.TimerStatePayload)
	assert.Equal(t, 59, state.TimeLeft)
	assert.False(t, state.IsPaused)
}

func TestHostExpiryFiresExactlyOnce(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")
	engine.phase = phaseRunning
	engine.timeLeft = 1

	engine.tick()

	ev := em.next(t)
	require.Equal(t, protocol.EventTypeTimerUpdate, ev.Type)
	assert.Equal(t, 0, ev.Payload.(protocol.TimerStatePayload).TimeLeft)

	ev = em.next(t)
	require.Equal(t, protocol.EventTypeTimerExpired, ev.Type)

	// Zero-ticks before teardown must not re-broadcast the expiry.
	engine.tick()
	engine.tick()
	em.expectNone(t)
}

func TestHostAdjustClampsAtZero(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")
	engine.phase = phaseRunning
	engine.timeLeft = 30

	engine.Adjust(-60)

	ev := em.next(t)
	require.Equal(t, protocol.EventTypeAdjustTimer, ev.Type)
	payload := ev.Payload.(protocol.AdjustTimerPayload)
	assert.Equal(t, -60, payload.TimeAdjustment)
	assert.Equal(t, 0, payload.NewTime, "clamped, not -30")

	ev = em.next(t)
	require.Equal(t, protocol.EventTypeTimerUpdate, ev.Type)
	assert.Equal(t, 0, ev.Payload.(protocol.TimerStatePayload).TimeLeft)
}

func TestHostAdjustAfterExpiryResumes(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")
	engine.phase = phaseRunning
	engine.timeLeft = 1

	engine.tick() // reaches zero, expires
	em.next(t)    // timerUpdate
	em.next(t)    // timerExpired
	require.Equal(t, phaseExpired, engine.phase)

	engine.Adjust(60)
	require.Equal(t, phaseRunning, engine.phase)
	em.next(t) // adjustTimer
	em.next(t) // timerUpdate

	engine.tick()
	ev := em.next(t)
	require.Equal(t, protocol.EventTypeTimerUpdate, ev.Type)
	assert.Equal(t, 59, ev.Payload.(protocol.TimerStatePayload).TimeLeft)

	// Having resumed, a fresh run down to zero expires again.
	engine.mu.Lock()
	engine.timeLeft = 1
	engine.mu.Unlock()
	engine.tick()
	em.next(t) // timerUpdate 0
	ev = em.next(t)
	assert.Equal(t, protocol.EventTypeTimerExpired, ev.Type)
}

func TestHostTogglePauseBroadcastsImmediately(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")
	engine.phase = phaseRunning
	engine.timeLeft = 30

	engine.TogglePause()
	ev := em.next(t)
	require.Equal(t, protocol.EventTypeTimerUpdate, ev.Type)
	assert.True(t, ev.Payload.(protocol.TimerStatePayload).IsPaused)

	// Paused ticks neither decrement nor broadcast.
	engine.tick()
	em.expectNone(t)
	assert.Equal(t, 30, engine.State().TimeLeft)

	engine.TogglePause()
	ev = em.next(t)
	assert.False(t, ev.Payload.(protocol.TimerStatePayload).IsPaused)
}

func TestHostStateRequestAnsweredImmediately(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")
	engine.phase = phaseRunning
	engine.timeLeft = 42

	env, err := protocol.NewEnvelope(protocol.EventTypeRequestTimerState, protocol.RequestTimerStatePayload{GameID: "ABCD"})
	require.NoError(t, err)
	engine.HandleStateRequest(env)

	ev := em.next(t)
	require.Equal(t, protocol.EventTypeTimerUpdate, ev.Type)
	assert.Equal(t, 42, ev.Payload.(protocol.TimerStatePayload).TimeLeft)
}

func TestHostUninitializedIgnoresStateRequest(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")

	env, err := protocol.NewEnvelope(protocol.EventTypeRequestTimerState, protocol.RequestTimerStatePayload{GameID: "ABCD"})
	require.NoError(t, err)
	engine.HandleStateRequest(env)
	em.expectNone(t)
}

func TestHostSecondStartIsNoOp(t *testing.T) {
	clock := clockwork.NewFakeClock()
	em := newChanEmitter()
	engine := NewHostEngine(clock, em, "ABCD")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Start(ctx, &protocol.GameSettings{GameTimeMins: 1}, nil)
	clock.BlockUntil(1)
	engine.Start(ctx, &protocol.GameSettings{GameTimeMins: 99}, nil)

	assert.Equal(t, 60, engine.State().TimeLeft, "re-entering game play cannot re-seed")
}

// Guards against ticks from a stopped engine leaking into a new game.
func TestHostStopSilencesTicks(t *testing.T) {
	em := newChanEmitter()
	engine := NewHostEngine(clockwork.NewFakeClock(), em, "ABCD")
	engine.phase = phaseRunning
	engine.timeLeft = 10

	engine.Stop()
	assert.False(t, engine.tick())
	em.expectNone(t)
}
