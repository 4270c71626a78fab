package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/culinarychaos/chaos-client/internal/protocol"
	"github.com/culinarychaos/chaos-client/internal/snapshot"
)

func timerStateEnv(t *testing.T, gameID string, timeLeft int, paused bool) *protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(protocol.EventTypeTimerState, protocol.TimerStatePayload{
		GameID: gameID, TimeLeft: timeLeft, IsPaused: paused,
	})
	require.NoError(t, err)
	return env
}

func newFlags(t *testing.T) *snapshot.Store {
	t.Helper()
	flags, err := snapshot.NewStore(t.TempDir())
	require.NoError(t, err)
	return flags
}

func TestReplicaCountdownCompensationAppliedOnce(t *testing.T) {
	flags := newFlags(t)
	require.NoError(t, flags.MarkCountdownSeen("ABCD"))

	replica := NewReplica(clockwork.NewFakeClock(), newChanEmitter(), flags, "ABCD")

	// First snapshot is compensated by the countdown animation duration.
	replica.HandleState(timerStateEnv(t, "ABCD", 100, false))
	st := replica.State()
	assert.Equal(t, 100+CountdownSeconds, st.TimeLeft)
	assert.True(t, st.Initialized)

	// The flag was consumed: the second snapshot is adopted exactly.
	replica.HandleState(timerStateEnv(t, "ABCD", 42, false))
	assert.Equal(t, 42, replica.State().TimeLeft)
}

func TestReplicaNoCompensationWithoutFlag(t *testing.T) {
	replica := NewReplica(clockwork.NewFakeClock(), newChanEmitter(), newFlags(t), "ABCD")

	replica.HandleState(timerStateEnv(t, "ABCD", 100, false))
	assert.Equal(t, 100, replica.State().TimeLeft)
}

func TestReplicaCompensationKeyedByGameID(t *testing.T) {
	flags := newFlags(t)
	require.NoError(t, flags.MarkCountdownSeen("OTHR"))

	replica := NewReplica(clockwork.NewFakeClock(), newChanEmitter(), flags, "ABCD")
	replica.HandleState(timerStateEnv(t, "ABCD", 100, false))
	assert.Equal(t, 100, replica.State().TimeLeft, "flag for a different game does not apply")
}

func TestReplicaIgnoresOtherGames(t *testing.T) {
	replica := NewReplica(clockwork.NewFakeClock(), newChanEmitter(), newFlags(t), "ABCD")

	replica.HandleState(timerStateEnv(t, "WXYZ", 999, false))
	assert.False(t, replica.State().Initialized)
}

func TestReplicaRequestRetriedOnceAfterTwoSeconds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	em := newChanEmitter()
	replica := NewReplica(clock, em, newFlags(t), "ABCD")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	replica.Start(ctx, nil, nil)

	ev := em.next(t)
	require.Equal(t, protocol.EventTypeRequestTimerState, ev.Type)

	clock.BlockUntil(2) // retry timer + extrapolation ticker
	clock.Advance(StateRequestRetry)

	ev = em.next(t)
	assert.Equal(t, protocol.EventTypeRequestTimerState, ev.Type, "request retried")
}

func TestReplicaNoRetryOnceInitialized(t *testing.T) {
	clock := clockwork.NewFakeClock()
	em := newChanEmitter()
	replica := NewReplica(clock, em, newFlags(t), "ABCD")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	replica.Start(ctx, nil, nil)
	em.next(t) // initial request

	replica.HandleState(timerStateEnv(t, "ABCD", 50, false))

	clock.BlockUntil(2)
	clock.Advance(StateRequestRetry)
	em.expectNone(t)
}

func TestReplicaExtrapolatesBetweenBroadcasts(t *testing.T) {
	clock := clockwork.NewFakeClock()
	replica := NewReplica(clock, newChanEmitter(), newFlags(t), "ABCD")

	changes := make(chan State, 16)
	replica.SetOnChange(func(s State) { changes <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	replica.Start(ctx, &protocol.GameSettings{GameTimeMins: 1}, nil)

	clock.BlockUntil(2)
	clock.Advance(TickInterval)

	select {
	case st := <-changes:
		assert.Equal(t, 59, st.TimeLeft, "local tick counts down between broadcasts")
	case <-time.After(2 * time.Second):
		t.Fatal("no local tick observed")
	}

	// A broadcast overwrites the extrapolated value outright.
	replica.HandleState(timerStateEnv(t, "ABCD", 200, false))
	assert.Equal(t, 200, replica.State().TimeLeft)
}

func TestReplicaPauseGatesLocalTick(t *testing.T) {
	clock := clockwork.NewFakeClock()
	replica := NewReplica(clock, newChanEmitter(), newFlags(t), "ABCD")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	replica.Start(ctx, nil, nil)

	replica.HandleState(timerStateEnv(t, "ABCD", 30, true))

	clock.BlockUntil(2)
	clock.Advance(5 * TickInterval)
	time.Sleep(50 * time.Millisecond) // give a buggy tick a chance to land

	st := replica.State()
	assert.Equal(t, 30, st.TimeLeft, "no decrement while paused")
	assert.True(t, st.IsPaused)
}

func TestReplicaStopGuardsStaleCallbacks(t *testing.T) {
	replica := NewReplica(clockwork.NewFakeClock(), newChanEmitter(), newFlags(t), "ABCD")

	replica.HandleState(timerStateEnv(t, "ABCD", 30, false))
	replica.Stop()
	replica.HandleState(timerStateEnv(t, "ABCD", 99, false))

	st := replica.State()
	assert.False(t, st.Initialized)
	assert.Equal(t, 0, st.TimeLeft)
}
