package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/catalog"
	"github.com/culinarychaos/chaos-client/internal/protocol"
	"github.com/culinarychaos/chaos-client/internal/snapshot"
)

// registerReducers wires every inbound event the store cares about, plus
// the reconnect hook that drives automatic rejoin. The transport invokes
// handlers sequentially in arrival order, so reducers see per-connection
// ordering; nothing more is guaranteed, and every reducer tolerates
// duplicate or out-of-order application.
func (s *Store) registerReducers() {
	s.channel.On(protocol.EventTypeRoomUpdate, s.onRoomUpdate)
	s.channel.On(protocol.EventTypeRejoinSuccess, s.onRejoinSuccess)
	s.channel.On(protocol.EventTypeError, s.onError)
	s.channel.On(protocol.EventTypePointsUpdate, s.onPointsUpdate)
	s.channel.On(protocol.EventTypeInventoryUpdate, s.onInventoryUpdate)
	s.channel.On(protocol.EventTypeBuffApplied, s.onEffectApplied)
	s.channel.On(protocol.EventTypeDebuffApplied, s.onEffectApplied)
	s.channel.On(protocol.EventTypeBuffRemoved, s.onEffectRemoved)
	s.channel.On(protocol.EventTypeDebuffRemoved, s.onEffectRemoved)
	s.channel.On(protocol.EventTypeGameStarted, s.onGameStarted)
	s.channel.On(protocol.EventTypeGameSettings, s.onGameSettings)
	s.channel.On(protocol.EventTypeRecipeSelected, s.onRecipeSelected)
	s.channel.On(protocol.EventTypeChallengeUpdate, s.onChallengeUpdate)
	s.channel.On(protocol.EventTypeChallengeReward, s.onChallengeReward)

	s.channel.OnReconnect(func() {
		snap, ok, err := s.snapshots.Load()
		if err != nil {
			log.Warn().Err(err).Msg("snapshot load failed on reconnect")
			return
		}
		if !ok {
			return
		}
		s.RejoinGame(snap.Username, snap.GameID)
	})
}

// onRoomUpdate adopts the server's roster snapshot. Identity fields are
// replaced wholesale, never merged, so a stale local view cannot leak
// through a full server snapshot.
func (s *Store) onRoomUpdate(env *protocol.Envelope) {
	payload, err := parseAs[protocol.RoomUpdatePayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad roomUpdate payload")
		return
	}

	s.mu.Lock()
	s.state.GameID = payload.GameID
	s.state.GameType = payload.GameType
	s.state.Roster = append([]string(nil), payload.Players...)
	username, role := s.state.Username, s.state.Role
	s.publishLocked()
	s.mu.Unlock()

	log.Debug().
		Str("game_id", payload.GameID).
		Str("game_type", payload.GameType).
		Int("players", len(payload.Players)).
		Msg("room update applied")

	if role != protocol.RoleUnset {
		if err := s.snapshots.Save(snapshot.Snapshot{
			GameID:   payload.GameID,
			Username: username,
			Role:     role,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to persist session snapshot")
		}
	}
}

// onRejoinSuccess is the recovery protocol's single atomic commit point:
// identity, economy, roster, configuration, and every unlock flag change
// together in one state transition. Unlock flags the server omits are
// derived from (role, gameType): the host is implicitly unlocked for
// premium content, a player defaults to locked.
func (s *Store) onRejoinSuccess(env *protocol.Envelope) {
	payload, err := parseAs[protocol.RejoinSuccessPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad rejoinSuccess payload")
		return
	}

	cat := catalog.ForGameType(payload.GameType)
	isHost := payload.Role == protocol.RoleHost

	s.mu.Lock()
	st := newState()
	st.GameID = payload.GameID
	st.Username = payload.Username
	st.Role = payload.Role
	st.GameType = payload.GameType
	st.Roster = append([]string(nil), payload.Players...)
	st.Points = payload.Points
	st.Inventory = cat.DecorateAll(payload.Inventory)
	st.SelectedRecipe = payload.Recipe
	st.GameSettings = payload.GameSettings
	st.GameStarted = payload.GameStarted

	st.RecipeUnlocked = derivedFlag(payload.UnlockedRecipe, isHost)
	st.IcingUnlocked = derivedFlag(payload.UnlockedIcing, isHost)
	for _, id := range payload.UnlockedIngredients {
		st.UnlockedIngredients[id] = true
	}
	for _, id := range payload.UnlockedDesigns {
		st.UnlockedDesigns[id] = true
	}

	s.state = st
	s.pending = nil
	s.publishLocked()
	s.mu.Unlock()

	log.Info().
		Str("game_id", payload.GameID).
		Str("username", payload.Username).
		Str("role", string(payload.Role)).
		Msg("session recovered")

	if err := s.snapshots.Save(snapshot.Snapshot{
		GameID:   payload.GameID,
		Username: payload.Username,
		Role:     payload.Role,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to refresh session snapshot")
	}
}

// derivedFlag resolves an optional unlock flag against the host default.
func derivedFlag(explicit *bool, isHost bool) bool {
	if explicit != nil {
		return *explicit
	}
	return isHost
}

// onError routes a server error through the central classifier. No other
// component re-interprets error strings.
func (s *Store) onError(env *protocol.Envelope) {
	payload, err := parseAs[protocol.ErrorPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad error payload")
		return
	}

	class := ClassifyError(payload.Message)
	log.Debug().Str("class", class.String()).Str("message", payload.Message).Msg("server error classified")

	switch class {
	case ErrorAlreadyUnlocked:
		s.absorbAlreadyUnlocked(payload.Message)

	case ErrorSoldOut:
		s.rollbackPurchase(payload.Message)
		s.notifier.Notify(payload.Message)

	case ErrorInformational:
		s.notifier.Notify(payload.Message)

	case ErrorFatal:
		log.Warn().Str("message", payload.Message).Msg("fatal server error, resetting session")
		s.reset()
		s.notifier.SessionEnded(payload.Message)
	}
}

// absorbAlreadyUnlocked makes a duplicate-unlock rejection idempotent: the
// flag the message refers to is simply set true, with no user interruption.
// The message carries no id, so the flag is inferred from its text; unlock
// commands are already idempotent locally, so a miss here is harmless.
func (s *Store) absorbAlreadyUnlocked(message string) {
	m := strings.ToLower(message)

	s.mu.Lock()
	switch {
	case strings.Contains(m, "icing"):
		s.state.IcingUnlocked = true
	case strings.Contains(m, "recipe"):
		s.state.RecipeUnlocked = true
	}
	s.publishLocked()
	s.mu.Unlock()
}

// rollbackPurchase compensates the optimistic mutation of a purchase the
// server rejected: refund exactly what was debited and remove the item that
// was appended. The pending operation is matched by item name appearing in
// the error text, falling back to the most recent pending purchase when the
// text matches none or several.
func (s *Store) rollbackPurchase(message string) {
	m := strings.ToLower(message)

	s.mu.Lock()
	defer func() {
		s.publishLocked()
		s.mu.Unlock()
	}()

	if len(s.pending) == 0 {
		log.Warn().Str("message", message).Msg("sold-out error with no pending purchase")
		return
	}

	idx := -1
	matches := 0
	for i, op := range s.pending {
		if strings.Contains(m, strings.ToLower(op.Item.Name)) {
			idx = i
			matches++
		}
	}
	if matches != 1 {
		idx = len(s.pending) - 1 // most recent
	}

	op := s.pending[idx]
	s.pending = append(s.pending[:idx:idx], s.pending[idx+1:]...)

	s.state.Points += op.Debited
	s.removeFirstLocked(op.Item.ID)

	log.Info().
		Str("item", op.Item.Name).
		Int("refunded", op.Debited).
		Str("correlation_id", op.CorrelationID).
		Msg("purchase rolled back")
}

// onPointsUpdate reconciles the absolute point total. Only events about the
// local player apply; the payload carries an absolute value, so duplicates
// are harmless.
func (s *Store) onPointsUpdate(env *protocol.Envelope) {
	payload, err := parseAs[protocol.PointsUpdatePayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad pointsUpdate payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if payload.Username != s.state.Username {
		return
	}
	s.state.Points = payload.Points
	if s.state.Points < 0 {
		s.state.Points = 0
	}
	s.publishLocked()
}

// onInventoryUpdate replaces the local inventory with the server's snapshot
// when it concerns the local player. Broadcasts about other players'
// inventories are ignored here; status dashboards consume those elsewhere.
// Server confirmation also settles pending purchases whose item survived.
func (s *Store) onInventoryUpdate(env *protocol.Envelope) {
	payload, err := parseAs[protocol.InventoryUpdatePayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad inventoryUpdate payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if payload.Username != s.state.Username {
		return
	}

	cat := catalog.ForGameType(s.state.GameType)
	s.state.Inventory = cat.DecorateAll(payload.Inventory)

	confirmed := make(map[string]bool, len(payload.Inventory))
	for _, item := range payload.Inventory {
		confirmed[item.ID] = true
	}
	var remaining []pendingPurchase
	for _, op := range s.pending {
		if !confirmed[op.Item.ID] {
			remaining = append(remaining, op)
		}
	}
	s.pending = remaining

	s.publishLocked()
}

// onEffectApplied records a buff/debuff landing on the local player.
// Effects on other players are not this reducer's business.
func (s *Store) onEffectApplied(env *protocol.Envelope) {
	payload, err := parseAs[protocol.EffectAppliedPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad effect payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.sweepExpiredLocked(now)

	if payload.TargetPlayer != s.state.Username {
		return
	}
	if payload.Item.DurationSec <= 0 {
		return // one-time effects leave no window
	}

	effect := ActiveEffect{
		Item:      payload.Item,
		ExpiresAt: now.Add(time.Duration(payload.Item.DurationSec) * time.Second),
	}
	switch env.Type {
	case protocol.EventTypeBuffApplied:
		s.state.ActiveBuffs[payload.Item.ID] = effect
	case protocol.EventTypeDebuffApplied:
		s.state.ActiveDebuffs[payload.Item.ID] = effect
	}
	s.publishLocked()
}

// onEffectRemoved drops a specific effect if an id is given, otherwise
// falls back to sweeping whatever has already expired.
func (s *Store) onEffectRemoved(env *protocol.Envelope) {
	payload, err := parseAs[protocol.EffectRemovedPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad effect removal payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpiredLocked(s.clock.Now())

	if payload.ItemID != "" && payload.TargetPlayer == s.state.Username {
		switch env.Type {
		case protocol.EventTypeBuffRemoved:
			delete(s.state.ActiveBuffs, payload.ItemID)
		case protocol.EventTypeDebuffRemoved:
			delete(s.state.ActiveDebuffs, payload.ItemID)
		}
	}
	s.publishLocked()
}

// onGameStarted marks play as begun. Players watch the pre-game countdown
// animation at this point, so the one-shot compensation flag is recorded
// for them; the host navigates straight to game play and needs none.
func (s *Store) onGameStarted(env *protocol.Envelope) {
	payload, err := parseAs[protocol.GameStartedPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad gameStarted payload")
		return
	}

	s.mu.Lock()
	s.state.GameStarted = true
	isHost := s.state.IsHost()
	s.publishLocked()
	s.mu.Unlock()

	if !isHost {
		if err := s.snapshots.MarkCountdownSeen(payload.GameID); err != nil {
			log.Warn().Err(err).Msg("failed to record countdown flag")
		}
	}
}

// onGameSettings adopts the host-authored configuration broadcast.
func (s *Store) onGameSettings(env *protocol.Envelope) {
	payload, err := parseAs[protocol.GameSettingsPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad gameSettings payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	settings := payload.Settings
	s.state.GameSettings = &settings
	s.publishLocked()
}

// onRecipeSelected adopts the host's recipe choice.
func (s *Store) onRecipeSelected(env *protocol.Envelope) {
	payload, err := parseAs[protocol.RecipeSelectedPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad recipeSelected payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	recipe := payload.Recipe
	s.state.SelectedRecipe = &recipe
	s.publishLocked()
}

// onChallengeUpdate tracks a challenge's lifecycle. The latest broadcast for
// an id wins outright; completed challenges stay visible for the results UI.
func (s *Store) onChallengeUpdate(env *protocol.Envelope) {
	payload, err := parseAs[protocol.ChallengeUpdatePayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad challengeUpdate payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Challenges[payload.Challenge.ID] = payload.Challenge
	s.publishLocked()
}

// onChallengeReward mutates the economy for a won challenge, exactly as a
// store purchase or host-granted effect would, idempotently per envelope id
// so retransmission cannot double-apply.
func (s *Store) onChallengeReward(env *protocol.Envelope) {
	payload, err := parseAs[protocol.ChallengeRewardPayload](env)
	if err != nil {
		log.Error().Err(err).Msg("bad challengeReward payload")
		return
	}

	s.mu.Lock()
	if s.appliedRewards[env.ID] {
		s.mu.Unlock()
		log.Debug().Str("event_id", env.ID).Msg("duplicate challenge reward ignored")
		return
	}
	s.appliedRewards[env.ID] = true

	if payload.Winner != s.state.Username {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	s.sweepExpiredLocked(now)

	var emitPoints bool
	var points int
	switch payload.Reward.Type {
	case protocol.RewardPoints:
		s.state.Points += payload.Reward.Points
		points = s.state.Points
		emitPoints = true
	case protocol.RewardBuff:
		if payload.Reward.Item != nil && payload.Reward.Item.DurationSec > 0 {
			s.state.ActiveBuffs[payload.Reward.Item.ID] = ActiveEffect{
				Item:      *payload.Reward.Item,
				ExpiresAt: now.Add(time.Duration(payload.Reward.Item.DurationSec) * time.Second),
			}
		}
	case protocol.RewardDebuff:
		if payload.Reward.Item != nil && payload.Reward.Item.DurationSec > 0 {
			s.state.ActiveDebuffs[payload.Reward.Item.ID] = ActiveEffect{
				Item:      *payload.Reward.Item,
				ExpiresAt: now.Add(time.Duration(payload.Reward.Item.DurationSec) * time.Second),
			}
		}
	}
	username, gameID := s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	log.Info().
		Str("challenge_id", payload.ChallengeID).
		Str("reward_type", string(payload.Reward.Type)).
		Msg("challenge reward applied")

	if emitPoints {
		s.emit(protocol.EventTypeUpdatePoints, protocol.PointsUpdatePayload{
			Username: username, GameID: gameID, Points: points,
		})
	}
}

// parseAs decodes an envelope payload into a concrete type.
func parseAs[T any](env *protocol.Envelope) (T, error) {
	var zero T
	payload, err := protocol.ParsePayload(env)
	if err != nil {
		return zero, err
	}
	typed, ok := payload.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected payload type %T for %s", payload, env.Type)
	}
	return typed, nil
}
