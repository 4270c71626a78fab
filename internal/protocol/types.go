package protocol

// Role identifies what this client is allowed to do within a session.
type Role string

const (
	RoleUnset  Role = ""
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// HostUsername is the fixed display identity of the hosting client.
const HostUsername = "HOST"

// ItemKind classifies how a store item affects gameplay when used.
type ItemKind string

const (
	ItemKindBuff    ItemKind = "buff"
	ItemKindDebuff  ItemKind = "debuff"
	ItemKindUtility ItemKind = "utility"
)

// Item is a purchasable store item as it travels on the wire.
//
// Decoration holds client-side presentation data (rendered icon, styling)
// and is never serialized; it is re-attached after receipt by catalog lookup.
type Item struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Kind        ItemKind    `json:"kind"`
	Price       int         `json:"price"`
	DurationSec int         `json:"duration_sec"` // 0 means one-time use
	Decoration  interface{} `json:"-"`
}

// Recipe is the cocktail/bake the host selects for the session.
type Recipe struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BakeTimeMins int    `json:"bake_time_mins"`
}

// ChallengeSlot schedules an automated challenge relative to game start.
type ChallengeSlot struct {
	OffsetSec   int    `json:"offset_sec"`
	ChallengeID string `json:"challenge_id"`
}

// GameSettings is the host-authored configuration blob.
type GameSettings struct {
	GameTimeMins      int             `json:"game_time_mins"`
	StartingPoints    int             `json:"starting_points"`
	EnabledItems      []string        `json:"enabled_items"`
	ChallengeSchedule []ChallengeSlot `json:"challenge_schedule,omitempty"`
}

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengeWaiting   ChallengeStatus = "waiting"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
)

// RewardType selects how a challenge reward mutates the winner's economy.
type RewardType string

const (
	RewardPoints RewardType = "points"
	RewardBuff   RewardType = "buff"
	RewardDebuff RewardType = "debuff"
)

// Reward describes what a challenge winner receives.
type Reward struct {
	Type   RewardType `json:"type"`
	Points int        `json:"points,omitempty"`
	Item   *Item      `json:"item,omitempty"`
}

// Challenge is a timed side-competition within a game session.
type Challenge struct {
	ID           string          `json:"id"`
	Status       ChallengeStatus `json:"status"`
	Participants []string        `json:"participants"`
	Winner       string          `json:"winner,omitempty"`
	Reward       Reward          `json:"reward"`
}
