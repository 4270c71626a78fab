package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/protocol"
)

// Snapshot is the durable record that survives a page-reload equivalent:
// just enough identity to drive a rejoin. Role is persisted for convenience
// but the server's rejoin response is what actually re-derives it.
type Snapshot struct {
	GameID   string        `json:"game_id"`
	Username string        `json:"username"`
	Role     protocol.Role `json:"role"`
}

// Store persists the session snapshot and one-shot countdown flags under a
// directory, one small JSON file per record.
type Store struct {
	dir string
}

const (
	sessionFile       = "session.json"
	countdownFileTmpl = "countdown-%s.flag"
)

// NewStore creates a snapshot store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes the session snapshot atomically (temp file + rename).
func (s *Store) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(s.dir, sessionFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	log.Debug().
		Str("game_id", snap.GameID).
		Str("username", snap.Username).
		Msg("session snapshot saved")
	return nil
}

// Load returns the persisted snapshot, or ok=false if none exists.
func (s *Store) Load() (Snapshot, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionFile))
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// A corrupt snapshot is treated as absent; rejoining with garbage
		// identity would just bounce off the server.
		log.Warn().Err(err).Msg("discarding unreadable session snapshot")
		return Snapshot{}, false, nil
	}
	if snap.GameID == "" {
		return Snapshot{}, false, nil
	}
	return snap, true, nil
}

// Clear deletes the persisted snapshot. Missing is not an error.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, sessionFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// MarkCountdownSeen records that this client watched the pre-game countdown
// animation for the given game.
func (s *Store) MarkCountdownSeen(gameID string) error {
	path := filepath.Join(s.dir, fmt.Sprintf(countdownFileTmpl, gameID))
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		return fmt.Errorf("mark countdown seen: %w", err)
	}
	return nil
}

// ConsumeCountdownSeen reports whether the countdown flag is set for the
// given game, deleting it in the same call. The flag is strictly one-shot:
// a second call for the same game id returns false.
func (s *Store) ConsumeCountdownSeen(gameID string) bool {
	path := filepath.Join(s.dir, fmt.Sprintf(countdownFileTmpl, gameID))
	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}
