package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chameleon/internal/config"
	"github.com/mcdev12/chameleon/internal/store"
)

const createAttempts = 10

// Repository performs the lobby lifecycle operations against the shared
// store: create, join, leave (with host handoff), and watch.
type Repository struct {
	store store.Store
	cfg   *config.Game
	rng   *rand.Rand
}

// NewRepository wires a repository. rng feeds lobby code generation only.
func NewRepository(st store.Store, cfg *config.Game, rng *rand.Rand) *Repository {
	return &Repository{store: st, cfg: cfg, rng: rng}
}

// Create writes a fresh lobby record with the caller as host and returns its
// code. An empty requestedCode draws random codes until one is free; a
// host-chosen code fails with ErrCodeTaken if it already exists.
func (r *Repository) Create(ctx context.Context, playerID, playerName, requestedCode string) (string, error) {
	name, err := ValidatePlayerName(playerName)
	if err != nil {
		return "", err
	}

	doc := map[string]any{
		"host":      playerID,
		"status":    string(StatusWaiting),
		"createdAt": store.ServerTimestamp,
		"settings": map[string]any{
			"textClueModeEnabled": r.cfg.TextClueModeEnabled,
		},
		"players": map[string]any{
			playerID: map[string]any{
				"name":     name,
				"isHost":   true,
				"joinedAt": store.ServerTimestamp,
			},
		},
	}

	if requestedCode != "" {
		code, err := ValidateCode(requestedCode, r.cfg.LobbyCodeLength)
		if err != nil {
			return "", err
		}
		if err := r.store.Create(ctx, Path(code), doc); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return "", ErrCodeTaken
			}
			return "", fmt.Errorf("create lobby %s: %w", code, err)
		}
		return code, nil
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		code := GenerateCode(r.rng, r.cfg.LobbyCodeLength)
		err := r.store.Create(ctx, Path(code), doc)
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create lobby %s: %w", code, err)
		}
		log.Info().Str("lobby_code", code).Str("player_id", playerID).Msg("lobby created")
		return code, nil
	}
	return "", ErrNoUniqueCode
}

// Join adds a player to a waiting lobby. The precondition checks (exists,
// still waiting, not full) run inside one transaction so a racing start or
// join cannot slip a player past them.
func (r *Repository) Join(ctx context.Context, code, playerID, playerName string) error {
	name, err := ValidatePlayerName(playerName)
	if err != nil {
		return err
	}
	code, err = ValidateCode(code, r.cfg.LobbyCodeLength)
	if err != nil {
		return err
	}

	_, err = r.store.Transaction(ctx, Path(code), func(current any) (any, error) {
		if current == nil {
			return nil, ErrLobbyNotFound
		}
		l, err := DecodeLobby(code, current)
		if err != nil {
			return nil, err
		}
		if l.Status != StatusWaiting {
			return nil, ErrGameInProgress
		}
		if _, member := l.Players[playerID]; !member && len(l.Players) >= r.cfg.MaxPlayers {
			return nil, ErrLobbyFull
		}
		next := store.SetAt(store.Clone(current), []string{"players", playerID}, map[string]any{
			"name":     name,
			"isHost":   false,
			"joinedAt": store.ServerTimestamp,
		})
		return next, nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("lobby_code", code).Str("player_id", playerID).Msg("joined lobby")
	return nil
}

// Leave removes a player. The last player out deletes the record; a
// departing host hands off to the earliest-joined survivor in the same
// transaction, so no snapshot ever shows a lobby without a host.
func (r *Repository) Leave(ctx context.Context, code, playerID string) error {
	_, err := r.store.Transaction(ctx, Path(code), func(current any) (any, error) {
		if current == nil {
			// Already gone.
			return nil, store.ErrAborted
		}
		l, err := DecodeLobby(code, current)
		if err != nil {
			return nil, err
		}
		delete(l.Players, playerID)
		if len(l.Players) == 0 {
			log.Info().Str("lobby_code", code).Msg("last player left, deleting lobby")
			return nil, nil
		}
		if l.Host == playerID {
			successor := l.PlayersInJoinOrder()[0]
			l.Host = successor.ID
			p := l.Players[successor.ID]
			p.IsHost = true
			l.Players[successor.ID] = p
			log.Info().
				Str("lobby_code", code).
				Str("old_host", playerID).
				Str("new_host", successor.ID).
				Msg("host left, reassigned")
		}
		return l, nil
	})
	return err
}

// Watch subscribes to a lobby record and delivers decoded snapshots. A nil
// lobby means the record was deleted.
func (r *Repository) Watch(ctx context.Context, code string, onLobby func(*Lobby), onError func(error)) (store.UnsubscribeFunc, error) {
	return r.store.Subscribe(ctx, Path(code), func(snapshot any) {
		l, err := DecodeLobby(code, snapshot)
		if err != nil {
			onError(fmt.Errorf("decode lobby %s: %w", code, err))
			return
		}
		onLobby(l)
	}, onError)
}
