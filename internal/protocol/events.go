package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the base structure for every message on the channel.
type Envelope struct {
	ID        string          `json:"id"`        // Event UUID
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType names a logical event on the channel.
type EventType string

// Client -> server events.
const (
	EventTypeCreateGame        EventType = "createGame"
	EventTypeJoinGame          EventType = "joinGame"
	EventTypeRejoinGame        EventType = "rejoinGame"
	EventTypeLeaveGame         EventType = "leaveGame"
	EventTypeUpdatePoints      EventType = "updatePoints"
	EventTypeUseItem           EventType = "useItem"
	EventTypeUnlockIngredient  EventType = "unlockIngredient"
	EventTypeRequestTimerState EventType = "requestTimerState"
	EventTypeAdjustTimer       EventType = "adjustTimer"
	EventTypeTimerExpired      EventType = "timerExpired"
	EventTypeSaveGameSettings  EventType = "saveGameSettings"
	EventTypeSelectRecipe      EventType = "selectRecipe"
)

// Server -> client events.
const (
	EventTypeRoomUpdate      EventType = "roomUpdate"
	EventTypeRejoinSuccess   EventType = "rejoinSuccess"
	EventTypeError           EventType = "error"
	EventTypePointsUpdate    EventType = "pointsUpdate"
	EventTypeBuffApplied     EventType = "buffApplied"
	EventTypeDebuffApplied   EventType = "debuffApplied"
	EventTypeBuffRemoved     EventType = "buffRemoved"
	EventTypeDebuffRemoved   EventType = "debuffRemoved"
	EventTypeGameStarted     EventType = "gameStarted"
	EventTypeGameSettings    EventType = "gameSettings"
	EventTypeRecipeSelected  EventType = "recipeSelected"
	EventTypeChallengeUpdate EventType = "challengeUpdate"
	EventTypeChallengeReward EventType = "challengeReward"
	EventTypeTimeAdded       EventType = "timeAdded"
)

// Both directions: the host emits these, players receive them.
const (
	EventTypeTimerState      EventType = "timerState"
	EventTypeTimerUpdate     EventType = "timerUpdate"
	EventTypeInventoryUpdate EventType = "inventoryUpdate"
)

// NewEnvelope wraps a payload in a fresh envelope with a generated event id.
func NewEnvelope(eventType EventType, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// ParsePayload parses envelope data into the appropriate payload struct.
func ParsePayload(env *Envelope) (interface{}, error) {
	switch env.Type {
	case EventTypeRoomUpdate:
		var payload RoomUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRejoinSuccess:
		var payload RejoinSuccessPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeError:
		var payload ErrorPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypePointsUpdate, EventTypeUpdatePoints:
		var payload PointsUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeInventoryUpdate:
		var payload InventoryUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBuffApplied, EventTypeDebuffApplied:
		var payload EffectAppliedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeBuffRemoved, EventTypeDebuffRemoved:
		var payload EffectRemovedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimerState, EventTypeTimerUpdate:
		var payload TimerStatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGameSettings:
		var payload GameSettingsPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeRecipeSelected:
		var payload RecipeSelectedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGameStarted:
		var payload GameStartedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeChallengeUpdate:
		var payload ChallengeUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeChallengeReward:
		var payload ChallengeRewardPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeTimeAdded:
		var payload TimeAddedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
