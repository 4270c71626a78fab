package timer

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// enginePhase is the host countdown state machine.
type enginePhase int

const (
	phaseUninitialized enginePhase = iota
	phaseArmed
	phaseRunning
	phasePaused
	phaseExpired
)

func (p enginePhase) String() string {
	switch p {
	case phaseUninitialized:
		return "uninitialized"
	case phaseArmed:
		return "armed"
	case phaseRunning:
		return "running"
	case phasePaused:
		return "paused"
	case phaseExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// HostEngine runs only on the host client. It owns the authoritative
// countdown, broadcasts it every tick, and detects expiry exactly once.
// Ticking is not gated on delivery: if the channel is unavailable the local
// countdown continues and the next tick simply sends the current value.
type HostEngine struct {
	clock   clockwork.Clock
	emitter Emitter
	gameID  string

	mu           sync.Mutex
	phase        enginePhase
	timeLeft     int
	paused       bool
	expiredFired bool
	stopped      bool
}

// NewHostEngine creates an engine for one game session.
func NewHostEngine(clock clockwork.Clock, emitter Emitter, gameID string) *HostEngine {
	return &HostEngine{
		clock:   clock,
		emitter: emitter,
		gameID:  gameID,
	}
}

// Start seeds the countdown and begins the arm-delay-then-tick loop. A
// second call on an initialized engine is a no-op, so re-entering the
// game-play view cannot double-seed.
func (e *HostEngine) Start(ctx context.Context, settings *protocol.GameSettings, recipe *protocol.Recipe) {
	e.mu.Lock()
	if e.phase != phaseUninitialized {
		e.mu.Unlock()
		return
	}
	e.timeLeft = SeedSeconds(settings, recipe)
	e.phase = phaseArmed
	seeded := e.timeLeft
	e.mu.Unlock()

	log.Info().
		Str("game_id", e.gameID).
		Int("seconds", seeded).
		Dur("arm_delay", ArmDelay).
		Msg("host timer armed")

	go e.run(ctx)
}

// run waits out the arm delay once, then ticks every second until stopped.
func (e *HostEngine) run(ctx context.Context) {
	arm := e.clock.NewTimer(ArmDelay)
	select {
	case <-arm.Chan():
	case <-ctx.Done():
		stopAndDrainTimer(arm)
		return
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if e.phase == phaseArmed {
		e.phase = phaseRunning
	}
	e.mu.Unlock()

	ticker := e.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !e.tick() {
				return
			}
		}
	}
}

// tick applies one decrement. Returns false once the engine is stopped.
func (e *HostEngine) tick() bool {
	e.mu.Lock()

	if e.stopped {
		e.mu.Unlock()
		return false
	}
	if e.paused {
		e.mu.Unlock()
		return true
	}

	if e.timeLeft > 0 {
		e.timeLeft--
		state := protocol.TimerStatePayload{GameID: e.gameID, TimeLeft: e.timeLeft, IsPaused: e.paused}
		expired := e.timeLeft == 0 && !e.expiredFired
		if expired {
			e.expiredFired = true
			e.phase = phaseExpired
		}
		e.mu.Unlock()

		e.broadcast(state)
		if expired {
			e.fireExpiry()
		}
		return true
	}

	// Zero-tick after expiry: the one-shot guard keeps a straggling tick
	// from re-broadcasting the expiry before teardown.
	if !e.expiredFired {
		e.expiredFired = true
		e.phase = phaseExpired
		e.mu.Unlock()
		e.fireExpiry()
		return true
	}
	e.mu.Unlock()
	return true
}

// TogglePause flips the pause state and broadcasts it immediately, without
// waiting for the next tick, so replicas reflect the pause instantly.
func (e *HostEngine) TogglePause() {
	e.mu.Lock()
	e.paused = !e.paused
	if e.paused {
		if e.phase == phaseRunning {
			e.phase = phasePaused
		}
	} else if e.phase == phasePaused {
		e.phase = phaseRunning
	}
	state := protocol.TimerStatePayload{GameID: e.gameID, TimeLeft: e.timeLeft, IsPaused: e.paused}
	e.mu.Unlock()

	log.Info().Str("game_id", e.gameID).Bool("paused", state.IsPaused).Msg("host timer pause toggled")
	e.broadcast(state)
}

// Adjust applies a host time adjustment, clamping at zero, and broadcasts
// both the delta and the resulting absolute value. Adding time after expiry
// resumes ticking.
func (e *HostEngine) Adjust(deltaSeconds int) {
	e.mu.Lock()
	e.timeLeft += deltaSeconds
	if e.timeLeft < 0 {
		e.timeLeft = 0
	}
	if e.phase == phaseExpired && e.timeLeft > 0 {
		e.phase = phaseRunning
		e.expiredFired = false
	}
	newTime := e.timeLeft
	state := protocol.TimerStatePayload{GameID: e.gameID, TimeLeft: e.timeLeft, IsPaused: e.paused}
	e.mu.Unlock()

	log.Info().
		Str("game_id", e.gameID).
		Int("delta", deltaSeconds).
		Int("new_time", newTime).
		Msg("host timer adjusted")

	if err := e.emitter.Emit(protocol.EventTypeAdjustTimer, protocol.AdjustTimerPayload{
		GameID: e.gameID, TimeAdjustment: deltaSeconds, NewTime: newTime,
	}); err != nil {
		log.Warn().Err(err).Msg("adjustTimer emit failed")
	}
	e.broadcast(state)
}

// HandleStateRequest answers a replica's requestTimerState with an
// immediate broadcast of the current value.
func (e *HostEngine) HandleStateRequest(env *protocol.Envelope) {
	e.mu.Lock()
	state := protocol.TimerStatePayload{GameID: e.gameID, TimeLeft: e.timeLeft, IsPaused: e.paused}
	initialized := e.phase != phaseUninitialized
	e.mu.Unlock()

	if !initialized {
		return
	}
	e.broadcast(state)
}

// HandleTimeAdded reconciles after an externally-driven time grant (e.g. a
// post-expiry host dialog). Rather than trusting possibly idle local state,
// the engine re-requests its own timer state and adopts the answer.
func (e *HostEngine) HandleTimeAdded(env *protocol.Envelope) {
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		log.Error().Err(err).Msg("bad timeAdded payload")
		return
	}
	added, ok := payload.(protocol.TimeAddedPayload)
	if !ok {
		return
	}

	log.Info().
		Str("game_id", e.gameID).
		Int("seconds_added", added.SecondsAdded).
		Msg("external time grant, reconciling timer state")

	if err := e.emitter.Emit(protocol.EventTypeRequestTimerState, protocol.RequestTimerStatePayload{
		GameID: e.gameID,
	}); err != nil {
		log.Warn().Err(err).Msg("requestTimerState emit failed")
	}
}

// Reconcile adopts an authoritative timer state, e.g. the answer to the
// reconciliation request issued by HandleTimeAdded.
func (e *HostEngine) Reconcile(state protocol.TimerStatePayload) {
	if state.GameID != "" && state.GameID != e.gameID {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.timeLeft = state.TimeLeft
	e.paused = state.IsPaused
	if e.phase == phaseExpired && e.timeLeft > 0 {
		e.phase = phaseRunning
		e.expiredFired = false
	}
}

// State returns the current countdown view.
func (e *HostEngine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		TimeLeft:    e.timeLeft,
		IsPaused:    e.paused,
		Initialized: e.phase != phaseUninitialized,
	}
}

// Stop resets the engine to uninitialized; used when the game ends or a new
// game starts so a stale timer cannot fire into the next session.
func (e *HostEngine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.phase = phaseUninitialized
	e.timeLeft = 0
	e.paused = false
	e.expiredFired = false
}

func (e *HostEngine) broadcast(state protocol.TimerStatePayload) {
	if err := e.emitter.Emit(protocol.EventTypeTimerUpdate, state); err != nil {
		log.Warn().Err(err).Msg("timer broadcast failed")
	}
}

func (e *HostEngine) fireExpiry() {
	log.Info().Str("game_id", e.gameID).Msg("host timer expired")
	if err := e.emitter.Emit(protocol.EventTypeTimerExpired, protocol.TimerExpiredPayload{GameID: e.gameID}); err != nil {
		log.Warn().Err(err).Msg("timerExpired emit failed")
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, per the
// time.Timer.Stop documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
