package timer

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// CountdownFlags is the one-shot compensation flag surface the replica
// consumes. snapshot.Store satisfies it.
type CountdownFlags interface {
	ConsumeCountdownSeen(gameID string) bool
}

// Replica keeps a non-host client's countdown live between the host's
// 1-second broadcasts. It extrapolates locally and never smooths: every
// received broadcast overwrites the local value outright.
type Replica struct {
	clock   clockwork.Clock
	emitter Emitter
	flags   CountdownFlags
	gameID  string

	mu          sync.Mutex
	timeLeft    int
	paused      bool
	initialized bool
	stopped     bool
	onChange    func(State)
}

// NewReplica creates a replica for one game session.
func NewReplica(clock clockwork.Clock, emitter Emitter, flags CountdownFlags, gameID string) *Replica {
	return &Replica{
		clock:   clock,
		emitter: emitter,
		flags:   flags,
		gameID:  gameID,
	}
}

// SetOnChange registers a callback invoked after every local change. Must
// be called before Start.
func (r *Replica) SetOnChange(fn func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Start seeds a local default, requests the authoritative state, and begins
// the local extrapolation tick. A single retry of the state request fires
// after two seconds if no broadcast has been processed by then.
func (r *Replica) Start(ctx context.Context, settings *protocol.GameSettings, recipe *protocol.Recipe) {
	seed := SeedSeconds(settings, recipe)
	r.mu.Lock()
	r.timeLeft = seed
	r.mu.Unlock()

	log.Info().Str("game_id", r.gameID).Int("seed_seconds", seed).Msg("timer replica started")

	r.requestState()

	gameID := r.gameID
	r.clock.AfterFunc(StateRequestRetry, func() {
		r.mu.Lock()
		retry := !r.initialized && !r.stopped && r.gameID == gameID
		r.mu.Unlock()
		if retry {
			log.Debug().Str("game_id", gameID).Msg("no timer state received, retrying request")
			r.requestState()
		}
	})

	go r.run(ctx)
}

func (r *Replica) requestState() {
	if err := r.emitter.Emit(protocol.EventTypeRequestTimerState, protocol.RequestTimerStatePayload{
		GameID: r.gameID,
	}); err != nil {
		log.Warn().Err(err).Msg("requestTimerState emit failed")
	}
}

// run is the local 1-second extrapolation tick. It checks the pause state
// before every decrement; broadcasts arriving in between overwrite whatever
// this loop produced.
func (r *Replica) run(ctx context.Context) {
	ticker := r.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.mu.Lock()
			if r.stopped {
				r.mu.Unlock()
				return
			}
			if !r.paused && r.timeLeft > 0 {
				r.timeLeft--
				r.notifyLocked()
			}
			r.mu.Unlock()
		}
	}
}

// HandleState applies a timer broadcast from the host. The first state this
// replica adopts is compensated by the countdown animation duration when
// the one-shot flag is set for this game; consuming the flag guarantees the
// compensation applies exactly once.
func (r *Replica) HandleState(env *protocol.Envelope) {
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		log.Error().Err(err).Msg("bad timer state payload")
		return
	}
	state, ok := payload.(protocol.TimerStatePayload)
	if !ok {
		return
	}
	if state.GameID != "" && state.GameID != r.gameID {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	timeLeft := state.TimeLeft
	if !r.initialized && r.flags.ConsumeCountdownSeen(r.gameID) {
		timeLeft += CountdownSeconds
		log.Debug().
			Str("game_id", r.gameID).
			Int("received", state.TimeLeft).
			Int("adopted", timeLeft).
			Msg("applied countdown compensation to first timer snapshot")
	}

	r.timeLeft = timeLeft
	r.paused = state.IsPaused
	r.initialized = true
	r.notifyLocked()
}

// State returns the current replica view.
func (r *Replica) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{TimeLeft: r.timeLeft, IsPaused: r.paused, Initialized: r.initialized}
}

// Stop resets the replica to uninitialized so nothing fires into a new
// game under the same client.
func (r *Replica) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.initialized = false
	r.timeLeft = 0
	r.paused = false
}

// notifyLocked invokes the change callback. Caller holds r.mu.
func (r *Replica) notifyLocked() {
	if r.onChange != nil {
		r.onChange(State{TimeLeft: r.timeLeft, IsPaused: r.paused, Initialized: r.initialized})
	}
}
