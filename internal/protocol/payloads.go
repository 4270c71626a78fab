package protocol

// CreateGamePayload requests a new session from the server.
type CreateGamePayload struct {
	GameType string `json:"game_type"`
}

// JoinGamePayload establishes or recovers a player identity. The same shape
// serves joinGame, rejoinGame, and leaveGame.
type JoinGamePayload struct {
	Username string `json:"username"`
	GameID   string `json:"game_id"`
}

// PointsUpdatePayload reconciles an absolute point total for one player.
// Absolute, not a delta, so duplicate delivery is harmless.
type PointsUpdatePayload struct {
	Username string `json:"username"`
	GameID   string `json:"game_id"`
	Points   int    `json:"points"`
}

// InventoryUpdatePayload reconciles one player's full inventory. Items are
// stripped of presentation decorations before they reach the wire.
type InventoryUpdatePayload struct {
	Username      string `json:"username"`
	GameID        string `json:"game_id"`
	Inventory     []Item `json:"inventory"`
	PurchasedItem *Item  `json:"purchased_item,omitempty"`
}

// UseItemPayload asks the server to resolve an item's gameplay effect.
// TargetPlayer is required for debuffs; the UI validates that before the
// store ever sees the call.
type UseItemPayload struct {
	Username     string `json:"username"`
	GameID       string `json:"game_id"`
	Item         Item   `json:"item"`
	TargetPlayer string `json:"target_player,omitempty"`
}

// UnlockIngredientPayload records a premium-content unlock.
type UnlockIngredientPayload struct {
	Username string `json:"username"`
	GameID   string `json:"game_id"`
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
}

// RequestTimerStatePayload asks the host for the current countdown value.
type RequestTimerStatePayload struct {
	GameID string `json:"game_id"`
}

// AdjustTimerPayload carries a host time adjustment as both the delta and
// the resulting absolute value, so listeners can use either representation.
type AdjustTimerPayload struct {
	GameID         string `json:"game_id"`
	TimeAdjustment int    `json:"time_adjustment"`
	NewTime        int    `json:"new_time"`
}

// TimerStatePayload replicates the host's authoritative countdown.
type TimerStatePayload struct {
	GameID   string `json:"game_id"`
	TimeLeft int    `json:"time_left"`
	IsPaused bool   `json:"is_paused"`
}

// TimerExpiredPayload is the host's one-shot expiry signal.
type TimerExpiredPayload struct {
	GameID string `json:"game_id"`
}

// RoomUpdatePayload is the server's full roster/session snapshot. It always
// replaces local roster state wholesale.
type RoomUpdatePayload struct {
	GameID   string   `json:"game_id"`
	GameType string   `json:"game_type"`
	Players  []string `json:"players"`
}

// RejoinSuccessPayload is the recovery protocol's atomic commit point: every
// field is adopted together in one state transition. Unlock flags are
// pointers so reducers can distinguish "omitted" from "explicitly false" and
// derive defaults from (role, gameType).
type RejoinSuccessPayload struct {
	GameID              string        `json:"game_id"`
	Username            string        `json:"username"`
	Points              int           `json:"points"`
	Inventory           []Item        `json:"inventory"`
	Role                Role          `json:"role"`
	Players             []string      `json:"players"`
	GameType            string        `json:"game_type"`
	Recipe              *Recipe       `json:"recipe,omitempty"`
	GameSettings        *GameSettings `json:"game_settings,omitempty"`
	GameStarted         bool          `json:"game_started,omitempty"`
	UnlockedRecipe      *bool         `json:"unlocked_recipe,omitempty"`
	UnlockedIcing       *bool         `json:"unlocked_icing,omitempty"`
	UnlockedIngredients []string      `json:"unlocked_ingredients,omitempty"`
	UnlockedDesigns     []string      `json:"unlocked_designs,omitempty"`
}

// ErrorPayload carries the server's free-form error text. There is no error
// code; classification is by message content.
type ErrorPayload struct {
	Message string `json:"message"`
}

// EffectAppliedPayload announces a buff or debuff landing on a player.
type EffectAppliedPayload struct {
	GameID       string `json:"game_id"`
	TargetPlayer string `json:"target_player"`
	Item         Item   `json:"item"`
}

// EffectRemovedPayload announces a buff or debuff ending. ItemID may be
// empty, in which case receivers sweep whatever has already expired.
type EffectRemovedPayload struct {
	GameID       string `json:"game_id"`
	TargetPlayer string `json:"target_player"`
	ItemID       string `json:"item_id,omitempty"`
}

// GameSettingsPayload carries the host-authored configuration.
type GameSettingsPayload struct {
	GameID   string       `json:"game_id"`
	Settings GameSettings `json:"settings"`
}

// RecipeSelectedPayload broadcasts the host's recipe choice.
type RecipeSelectedPayload struct {
	GameID string `json:"game_id"`
	Recipe Recipe `json:"recipe"`
}

// GameStartedPayload signals that play has begun for the session.
type GameStartedPayload struct {
	GameID string `json:"game_id"`
}

// ChallengeUpdatePayload carries a challenge lifecycle change.
type ChallengeUpdatePayload struct {
	GameID    string    `json:"game_id"`
	Challenge Challenge `json:"challenge"`
}

// ChallengeRewardPayload instructs the winner's client to apply a reward to
// its economy. Application is idempotent per envelope id to survive
// retransmission.
type ChallengeRewardPayload struct {
	GameID      string `json:"game_id"`
	ChallengeID string `json:"challenge_id"`
	Winner      string `json:"winner"`
	Reward      Reward `json:"reward"`
}

// TimeAddedPayload notifies the host that time was granted externally, e.g.
// from a post-expiry decision dialog.
type TimeAddedPayload struct {
	GameID       string `json:"game_id"`
	SecondsAdded int    `json:"seconds_added"`
}
