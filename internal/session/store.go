package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/catalog"
	"github.com/culinarychaos/chaos-client/internal/protocol"
	"github.com/culinarychaos/chaos-client/internal/snapshot"
	"github.com/culinarychaos/chaos-client/internal/transport"
)

// joinSaveDelay is how long JoinGame waits before persisting the session
// snapshot, giving the server's room confirmation time to land first. The
// race is accepted: a snapshot with a never-confirmed game id just fails the
// next rejoin.
const joinSaveDelay = 100 * time.Millisecond

// pendingPurchase tracks an optimistic purchase until the server confirms
// or rejects it. Debited records what was actually subtracted, which may be
// less than the price when the point floor clamped.
type pendingPurchase struct {
	CorrelationID string
	Item          protocol.Item
	Debited       int
	At            time.Time
}

// Store is the single source of truth for this client's view of the shared
// game. Commands translate user intents into outbound events; reducers
// translate inbound events into state mutations. All mutations are
// serialized behind one mutex and published to subscribers as complete
// state snapshots.
type Store struct {
	channel   transport.Channel
	snapshots *snapshot.Store
	clock     clockwork.Clock
	notifier  Notifier

	mu      sync.Mutex
	state   State
	pending []pendingPurchase

	// appliedRewards keys challenge-reward envelopes already applied, so a
	// retransmitted reward mutates the economy exactly once.
	appliedRewards map[string]bool

	subMu       sync.Mutex
	subscribers map[int]chan State
	nextSubID   int
}

// NewStore creates a session store bound to a transport channel and a
// snapshot store.
func NewStore(channel transport.Channel, snapshots *snapshot.Store, clock clockwork.Clock, notifier Notifier) *Store {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	s := &Store{
		channel:        channel,
		snapshots:      snapshots,
		clock:          clock,
		notifier:       notifier,
		state:          newState(),
		appliedRewards: make(map[string]bool),
		subscribers:    make(map[int]chan State),
	}
	s.registerReducers()
	return s
}

// State returns a deep copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel receiving a full state snapshot after every
// mutation, and a cancel function. Slow subscribers lose intermediate
// snapshots, never the mutex.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan State, 8)
	s.subscribers[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publishLocked snapshots the state and fans it out. Caller holds s.mu.
func (s *Store) publishLocked() {
	snap := s.state.clone()

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for id, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			log.Debug().Int("subscriber", id).Msg("subscriber lagging, dropping snapshot")
		}
	}
}

func (s *Store) emit(eventType protocol.EventType, payload interface{}) {
	if err := s.channel.Emit(eventType, payload); err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Msg("emit failed")
	}
}

// CreateGame starts hosting a new session. Roster and game id become valid
// only once the server's room update arrives.
func (s *Store) CreateGame(gameType string) {
	s.mu.Lock()
	s.state = newState()
	s.state.Role = protocol.RoleHost
	s.state.Username = protocol.HostUsername
	s.publishLocked()
	s.mu.Unlock()

	log.Info().Str("game_type", gameType).Msg("creating game")
	s.emit(protocol.EventTypeCreateGame, protocol.CreateGamePayload{GameType: gameType})
}

// JoinGame joins an existing session as a player. The requested identity is
// stored speculatively; the snapshot is persisted shortly afterwards so the
// game id has time to be confirmed.
func (s *Store) JoinGame(username, gameID string) {
	s.mu.Lock()
	s.state = newState()
	s.state.Role = protocol.RolePlayer
	s.state.Username = username
	s.state.GameID = gameID
	s.publishLocked()
	s.mu.Unlock()

	log.Info().Str("game_id", gameID).Str("username", username).Msg("joining game")
	s.emit(protocol.EventTypeJoinGame, protocol.JoinGamePayload{Username: username, GameID: gameID})

	s.clock.AfterFunc(joinSaveDelay, func() {
		s.mu.Lock()
		stillRelevant := s.state.GameID == gameID && s.state.Username == username
		s.mu.Unlock()
		if !stillRelevant {
			return
		}
		if err := s.snapshots.Save(snapshot.Snapshot{
			GameID:   gameID,
			Username: username,
			Role:     protocol.RolePlayer,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to persist session snapshot")
		}
	})
}

// RejoinGame requests session recovery. Nothing local is mutated eagerly;
// the server's rejoin response is adopted wholesale when it arrives.
func (s *Store) RejoinGame(username, gameID string) {
	log.Info().Str("game_id", gameID).Str("username", username).Msg("rejoining game")
	s.emit(protocol.EventTypeRejoinGame, protocol.JoinGamePayload{Username: username, GameID: gameID})
}

// LeaveGame notifies the server and fully resets local state, including the
// persisted snapshot.
func (s *Store) LeaveGame() {
	s.mu.Lock()
	username, gameID := s.state.Username, s.state.GameID
	s.mu.Unlock()

	if gameID != "" {
		s.emit(protocol.EventTypeLeaveGame, protocol.JoinGamePayload{Username: username, GameID: gameID})
	}
	s.reset()
	log.Info().Str("game_id", gameID).Msg("left game")
}

// reset clears all session state and the persisted snapshot.
func (s *Store) reset() {
	s.mu.Lock()
	s.state = newState()
	s.pending = nil
	s.publishLocked()
	s.mu.Unlock()

	if err := s.snapshots.Clear(); err != nil {
		log.Warn().Err(err).Msg("failed to clear session snapshot")
	}
}

// AddPoints credits points locally, then reconciles the absolute total with
// the server.
func (s *Store) AddPoints(amount int) {
	s.mu.Lock()
	s.state.Points += amount
	points, username, gameID := s.state.Points, s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeUpdatePoints, protocol.PointsUpdatePayload{
		Username: username, GameID: gameID, Points: points,
	})
}

// SubtractPoints debits points locally, clamping at zero, then reconciles
// the absolute total with the server.
func (s *Store) SubtractPoints(amount int) {
	s.mu.Lock()
	s.state.Points -= amount
	if s.state.Points < 0 {
		s.state.Points = 0
	}
	points, username, gameID := s.state.Points, s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeUpdatePoints, protocol.PointsUpdatePayload{
		Username: username, GameID: gameID, Points: points,
	})
}

// PurchaseItem applies a store purchase optimistically: debit the price
// (clamped at zero), append the item, record a pending operation, and emit
// the new totals. A later sold-out error compensates by replaying the exact
// inverse.
func (s *Store) PurchaseItem(item protocol.Item) {
	s.mu.Lock()
	debited := item.Price
	if debited > s.state.Points {
		debited = s.state.Points
	}
	s.state.Points -= debited
	s.state.Inventory = append(s.state.Inventory, item)
	s.pending = append(s.pending, pendingPurchase{
		CorrelationID: uuid.New().String(),
		Item:          item,
		Debited:       debited,
		At:            s.clock.Now(),
	})
	points, username, gameID := s.state.Points, s.state.Username, s.state.GameID
	inventory := catalog.StripAll(s.state.Inventory)
	s.publishLocked()
	s.mu.Unlock()

	stripped := catalog.Strip(item)
	s.emit(protocol.EventTypeUpdatePoints, protocol.PointsUpdatePayload{
		Username: username, GameID: gameID, Points: points,
	})
	s.emit(protocol.EventTypeInventoryUpdate, protocol.InventoryUpdatePayload{
		Username: username, GameID: gameID, Inventory: inventory, PurchasedItem: &stripped,
	})
}

// AddItemToInventory appends an item (e.g. a reward) and reconciles the
// full inventory with the server.
func (s *Store) AddItemToInventory(item protocol.Item) {
	s.mu.Lock()
	s.state.Inventory = append(s.state.Inventory, item)
	username, gameID := s.state.Username, s.state.GameID
	inventory := catalog.StripAll(s.state.Inventory)
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeInventoryUpdate, protocol.InventoryUpdatePayload{
		Username: username, GameID: gameID, Inventory: inventory,
	})
}

// RemoveItemFromInventory removes the first item matching the id and
// reconciles the full inventory with the server. Removing an absent id is a
// no-op: no phantom removals.
func (s *Store) RemoveItemFromInventory(itemID string) {
	s.mu.Lock()
	removed := s.removeFirstLocked(itemID)
	username, gameID := s.state.Username, s.state.GameID
	inventory := catalog.StripAll(s.state.Inventory)
	if removed {
		s.publishLocked()
	}
	s.mu.Unlock()

	if !removed {
		return
	}
	s.emit(protocol.EventTypeInventoryUpdate, protocol.InventoryUpdatePayload{
		Username: username, GameID: gameID, Inventory: inventory,
	})
}

// removeFirstLocked removes the first inventory entry with the given id.
// Caller holds s.mu.
func (s *Store) removeFirstLocked(itemID string) bool {
	for i, item := range s.state.Inventory {
		if item.ID == itemID {
			s.state.Inventory = append(s.state.Inventory[:i:i], s.state.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// UseItem consumes an item and emits the use intent. Effect resolution is
// entirely server-side; the only local bookkeeping is the inventory removal
// and, for duration-based items used on ourselves, the effect window the
// server will confirm later. One-time-use items (duration 0) leave no local
// effect window.
func (s *Store) UseItem(item protocol.Item, targetPlayer string) {
	s.mu.Lock()
	s.removeFirstLocked(item.ID)
	now := s.clock.Now()
	if item.DurationSec > 0 {
		expiry := now.Add(time.Duration(item.DurationSec) * time.Second)
		switch item.Kind {
		case protocol.ItemKindBuff:
			s.state.ActiveBuffs[item.ID] = ActiveEffect{Item: item, ExpiresAt: expiry}
		case protocol.ItemKindDebuff:
			if targetPlayer == s.state.Username {
				s.state.ActiveDebuffs[item.ID] = ActiveEffect{Item: item, ExpiresAt: expiry}
			}
		}
	}
	s.sweepExpiredLocked(now)
	username, gameID := s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeUseItem, protocol.UseItemPayload{
		Username: username, GameID: gameID, Item: catalog.Strip(item), TargetPlayer: targetPlayer,
	})
}

// UnlockIngredient records a premium ingredient unlock. Re-unlocking an
// already-unlocked id is a no-op.
func (s *Store) UnlockIngredient(itemID, name string) {
	s.mu.Lock()
	if s.state.UnlockedIngredients[itemID] {
		s.mu.Unlock()
		return
	}
	s.state.UnlockedIngredients[itemID] = true
	username, gameID := s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeUnlockIngredient, protocol.UnlockIngredientPayload{
		Username: username, GameID: gameID, ItemID: itemID, Name: name,
	})
}

// UnlockDesign records a premium design unlock with the same idempotency as
// UnlockIngredient.
func (s *Store) UnlockDesign(itemID, name string) {
	s.mu.Lock()
	if s.state.UnlockedDesigns[itemID] {
		s.mu.Unlock()
		return
	}
	s.state.UnlockedDesigns[itemID] = true
	username, gameID := s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeUnlockIngredient, protocol.UnlockIngredientPayload{
		Username: username, GameID: gameID, ItemID: itemID, Name: name,
	})
}

// UnlockRecipe unlocks the premium recipe for this player.
func (s *Store) UnlockRecipe() {
	s.unlockFlag("recipe", func(st *State) *bool { return &st.RecipeUnlocked })
}

// UnlockIcing unlocks premium icing content for this player.
func (s *Store) UnlockIcing() {
	s.unlockFlag("icing", func(st *State) *bool { return &st.IcingUnlocked })
}

func (s *Store) unlockFlag(name string, flag func(*State) *bool) {
	s.mu.Lock()
	f := flag(&s.state)
	if *f {
		s.mu.Unlock()
		return
	}
	*f = true
	username, gameID := s.state.Username, s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeUnlockIngredient, protocol.UnlockIngredientPayload{
		Username: username, GameID: gameID, ItemID: name, Name: name,
	})
}

// SaveGameSettings stores the host-authored configuration and broadcasts
// it. Host-only.
func (s *Store) SaveGameSettings(settings protocol.GameSettings) error {
	s.mu.Lock()
	if !s.state.IsHost() {
		s.mu.Unlock()
		return ErrNotHost
	}
	s.state.GameSettings = &settings
	gameID := s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeSaveGameSettings, protocol.GameSettingsPayload{GameID: gameID, Settings: settings})
	return nil
}

// SelectRecipe stores the host's recipe choice and broadcasts it. Host-only.
func (s *Store) SelectRecipe(recipe protocol.Recipe) error {
	s.mu.Lock()
	if !s.state.IsHost() {
		s.mu.Unlock()
		return ErrNotHost
	}
	s.state.SelectedRecipe = &recipe
	gameID := s.state.GameID
	s.publishLocked()
	s.mu.Unlock()

	s.emit(protocol.EventTypeSelectRecipe, protocol.RecipeSelectedPayload{GameID: gameID, Recipe: recipe})
	return nil
}

// sweepExpiredLocked garbage-collects expired effect entries. Reads never
// trust map membership alone, so this is pure cleanup; the maps self-heal
// even if a removal event is dropped. Caller holds s.mu.
func (s *Store) sweepExpiredLocked(now time.Time) {
	for id, e := range s.state.ActiveBuffs {
		if e.Expired(now) {
			delete(s.state.ActiveBuffs, id)
		}
	}
	for id, e := range s.state.ActiveDebuffs {
		if e.Expired(now) {
			delete(s.state.ActiveDebuffs, id)
		}
	}
}
