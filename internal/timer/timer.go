// Package timer holds the two halves of countdown synchronization: the
// host-authoritative engine and the best-effort player replica. The host's
// clock is the source of truth; replicas extrapolate locally between
// broadcasts and always yield to what the host sends.
package timer

import (
	"time"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// Countdown timing constants. The pre-game countdown animation, the arm
// delay, and the replica compensation are all derived from the same values
// so they cannot drift apart.
const (
	// CountdownSeconds is the duration of the pre-game countdown animation
	// shown to players before game play.
	CountdownSeconds = 5
	// BeginHoldSeconds is the "Begin!" hold shown after the countdown.
	BeginHoldSeconds = 1
	// ArmDelay is how long the host waits before its first decrement tick,
	// lining its clock up with the players' perceived game start.
	ArmDelay = (CountdownSeconds + BeginHoldSeconds) * time.Second
	// TickInterval is the countdown cadence for host and replicas alike.
	TickInterval = time.Second
	// StateRequestRetry is how long a replica waits before re-requesting
	// timer state when the first request draws no response.
	StateRequestRetry = 2 * time.Second
	// FallbackSeconds seeds the countdown when neither the game settings
	// nor the recipe provide a duration.
	FallbackSeconds = 3600
)

// State is a point-in-time view of a countdown.
type State struct {
	TimeLeft    int
	IsPaused    bool
	Initialized bool
}

// Emitter sends events toward the server. transport.Channel satisfies it.
type Emitter interface {
	Emit(eventType protocol.EventType, payload interface{}) error
}

// SeedSeconds resolves the initial countdown value: game settings first,
// then the recipe's bake time, then the fallback.
func SeedSeconds(settings *protocol.GameSettings, recipe *protocol.Recipe) int {
	if settings != nil && settings.GameTimeMins > 0 {
		return settings.GameTimeMins * 60
	}
	if recipe != nil && recipe.BakeTimeMins > 0 {
		return recipe.BakeTimeMins * 60
	}
	return FallbackSeconds
}
