package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/culinarychaos/chaos-client/internal/config"
	"github.com/culinarychaos/chaos-client/internal/protocol"
	"github.com/culinarychaos/chaos-client/internal/session"
	"github.com/culinarychaos/chaos-client/internal/snapshot"
	"github.com/culinarychaos/chaos-client/internal/timer"
	"github.com/culinarychaos/chaos-client/internal/transport"
)

// chaos-client is a headless reference client: it connects, restores or
// establishes a session, and logs every state change. It exists to exercise
// the library end to end against a dev server.
func main() {
	var (
		host     = flag.Bool("host", false, "create and host a new game")
		gameType = flag.String("type", "Classic Mix", "game type when hosting")
		gameID   = flag.String("game", "", "game code to join")
		username = flag.String("user", "", "display name when joining")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open snapshot store")
	}

	channel := transport.NewWebsocketChannel(transport.DefaultConfig(cfg.ServerURL))
	clock := clockwork.NewRealClock()
	store := session.NewStore(channel, snapshots, clock, logNotifier{})

	wireTimers(ctx, channel, store, snapshots, clock)

	if err := channel.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer channel.Close()

	switch {
	case *host:
		store.CreateGame(*gameType)
	case *gameID != "" && *username != "":
		store.JoinGame(*username, *gameID)
	default:
		// No explicit intent: recover whatever session survived the last run.
		snap, ok, err := snapshots.Load()
		if err != nil || !ok {
			log.Fatal().Msg("no session to resume; pass -host or -game/-user")
		}
		store.RejoinGame(snap.Username, snap.GameID)
	}

	states, cancel := store.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			store.LeaveGame()
			return
		case st := <-states:
			log.Info().
				Str("game_id", st.GameID).
				Str("role", string(st.Role)).
				Int("points", st.Points).
				Int("inventory", len(st.Inventory)).
				Int("players", len(st.Roster)).
				Bool("started", st.GameStarted).
				Msg("state")
		}
	}
}

// wireTimers starts the right timer component once the game begins: the
// host engine on the hosting client, the replica everywhere else.
func wireTimers(ctx context.Context, channel *transport.WebsocketChannel, store *session.Store, snapshots *snapshot.Store, clock clockwork.Clock) {
	states, _ := store.Subscribe()
	go func() {
		var engine *timer.HostEngine
		var replica *timer.Replica

		for {
			select {
			case <-ctx.Done():
				if engine != nil {
					engine.Stop()
				}
				if replica != nil {
					replica.Stop()
				}
				return
			case st, ok := <-states:
				if !ok {
					return
				}
				if !st.GameStarted || engine != nil || replica != nil {
					continue
				}

				if st.IsHost() {
					engine = timer.NewHostEngine(clock, channel, st.GameID)
					channel.On(protocol.EventTypeRequestTimerState, engine.HandleStateRequest)
					channel.On(protocol.EventTypeTimeAdded, engine.HandleTimeAdded)
					eng := engine
					channel.On(protocol.EventTypeTimerState, func(env *protocol.Envelope) {
						payload, err := protocol.ParsePayload(env)
						if err != nil {
							return
						}
						if ts, ok := payload.(protocol.TimerStatePayload); ok {
							eng.Reconcile(ts)
						}
					})
					engine.Start(ctx, st.GameSettings, st.SelectedRecipe)
				} else {
					replica = timer.NewReplica(clock, channel, snapshots, st.GameID)
					replica.SetOnChange(func(ts timer.State) {
						log.Debug().Int("time_left", ts.TimeLeft).Bool("paused", ts.IsPaused).Msg("countdown")
					})
					channel.On(protocol.EventTypeTimerState, replica.HandleState)
					channel.On(protocol.EventTypeTimerUpdate, replica.HandleState)
					replica.Start(ctx, st.GameSettings, st.SelectedRecipe)
				}
			}
		}
	}()
}

// logNotifier surfaces store notifications on the console.
type logNotifier struct{}

func (logNotifier) Notify(message string) {
	log.Warn().Str("notice", message).Msg("server message")
}

func (logNotifier) SessionEnded(reason string) {
	log.Error().Str("reason", reason).Msg("session ended, returning to entry flow")
}
