package session

import (
	"time"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// ActiveEffect is a buff or debuff currently applied to this player. An
// entry whose ExpiresAt has passed is logically absent even before a sweep
// removes it; every read filters by expiry.
type ActiveEffect struct {
	Item      protocol.Item
	ExpiresAt time.Time
}

// Expired reports whether the effect is logically absent at the given time.
func (e ActiveEffect) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// State is this client's complete view of the shared game session. Values
// handed to subscribers are deep copies; mutation happens only inside the
// store.
type State struct {
	GameID   string
	Username string
	Role     protocol.Role
	GameType string

	// Roster preserves join order; usernames are unique.
	Roster []string

	// Economy.
	Points        int
	Inventory     []protocol.Item
	ActiveBuffs   map[string]ActiveEffect
	ActiveDebuffs map[string]ActiveEffect

	// Host-authored configuration; nil until the host saves it.
	GameSettings   *protocol.GameSettings
	SelectedRecipe *protocol.Recipe
	GameStarted    bool

	// Challenges keyed by challenge id, latest lifecycle state wins.
	Challenges map[string]protocol.Challenge

	// Progressive unlock state for premium-mode content.
	RecipeUnlocked      bool
	IcingUnlocked       bool
	UnlockedIngredients map[string]bool
	UnlockedDesigns     map[string]bool
}

func newState() State {
	return State{
		ActiveBuffs:         make(map[string]ActiveEffect),
		ActiveDebuffs:       make(map[string]ActiveEffect),
		Challenges:          make(map[string]protocol.Challenge),
		UnlockedIngredients: make(map[string]bool),
		UnlockedDesigns:     make(map[string]bool),
	}
}

// InSession reports whether this client currently belongs to a game.
func (s State) InSession() bool {
	return s.GameID != ""
}

// IsHost reports whether this client is the session host.
func (s State) IsHost() bool {
	return s.Role == protocol.RoleHost
}

// LiveBuffs returns the buffs that have not expired at the given time.
func (s State) LiveBuffs(now time.Time) []ActiveEffect {
	return liveEffects(s.ActiveBuffs, now)
}

// LiveDebuffs returns the debuffs that have not expired at the given time.
func (s State) LiveDebuffs(now time.Time) []ActiveEffect {
	return liveEffects(s.ActiveDebuffs, now)
}

// HasBuff reports whether the given buff is applied and unexpired.
func (s State) HasBuff(itemID string, now time.Time) bool {
	e, ok := s.ActiveBuffs[itemID]
	return ok && !e.Expired(now)
}

// HasDebuff reports whether the given debuff is applied and unexpired.
func (s State) HasDebuff(itemID string, now time.Time) bool {
	e, ok := s.ActiveDebuffs[itemID]
	return ok && !e.Expired(now)
}

func liveEffects(effects map[string]ActiveEffect, now time.Time) []ActiveEffect {
	var live []ActiveEffect
	for _, e := range effects {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	return live
}

// clone returns a deep copy safe to hand to subscribers.
func (s State) clone() State {
	out := s
	out.Roster = append([]string(nil), s.Roster...)
	out.Inventory = append([]protocol.Item(nil), s.Inventory...)
	out.ActiveBuffs = cloneEffects(s.ActiveBuffs)
	out.ActiveDebuffs = cloneEffects(s.ActiveDebuffs)
	out.Challenges = cloneChallenges(s.Challenges)
	out.UnlockedIngredients = cloneSet(s.UnlockedIngredients)
	out.UnlockedDesigns = cloneSet(s.UnlockedDesigns)
	if s.GameSettings != nil {
		settings := *s.GameSettings
		out.GameSettings = &settings
	}
	if s.SelectedRecipe != nil {
		recipe := *s.SelectedRecipe
		out.SelectedRecipe = &recipe
	}
	return out
}

func cloneEffects(in map[string]ActiveEffect) map[string]ActiveEffect {
	out := make(map[string]ActiveEffect, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneChallenges(in map[string]protocol.Challenge) map[string]protocol.Challenge {
	out := make(map[string]protocol.Challenge, len(in))
	for k, v := range in {
		v.Participants = append([]string(nil), v.Participants...)
		out[k] = v
	}
	return out
}

func cloneSet(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
