package game

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chameleon/internal/config"
	"github.com/mcdev12/chameleon/internal/lobby"
	"github.com/mcdev12/chameleon/internal/store"
)

// HostAuthority is the subset of phase transitions only the elected host
// performs. Every client observes the same "all voted" condition at the same
// time; gating the resulting tally-and-publish writes behind the single host
// id keeps them from racing each other. This is a cooperative election via a
// stored flag, sufficient while a lobby has exactly one active host tab; a
// host reconnecting on two devices at once is not transactionally guarded.
type HostAuthority struct {
	store    store.Store
	cfg      *config.Game
	rng      *rand.Rand
	playerID string
}

// NewHostAuthority wires the authority for one local player. rng feeds every
// randomized draw (ballot, chameleon, secret word, tie-breaks) so tests can
// seed it.
func NewHostAuthority(st store.Store, cfg *config.Game, rng *rand.Rand, playerID string) *HostAuthority {
	return &HostAuthority{store: st, cfg: cfg, rng: rng, playerID: playerID}
}

func (a *HostAuthority) requireHost(l *lobby.Lobby) error {
	if l.Host != a.playerID {
		return ErrNotHost
	}
	return nil
}

// StartRound writes a fresh topic ballot and replaces any prior round data,
// moving the lobby into the topic-vote phase.
func (a *HostAuthority) StartRound(ctx context.Context, l *lobby.Lobby) error {
	if err := a.requireHost(l); err != nil {
		return err
	}
	if len(l.Players) < a.cfg.MinPlayers {
		return fmt.Errorf("%w: need at least %d", ErrNotEnoughPlayers, a.cfg.MinPlayers)
	}

	ballot := a.cfg.RandomBallot(a.rng)
	err := a.store.Update(ctx, lobby.Path(l.Code), map[string]any{
		"status": string(lobby.StatusVoting),
		"game": map[string]any{
			"topics":    ballot,
			"startedAt": store.ServerTimestamp,
		},
	})
	if err != nil {
		return fmt.Errorf("start round: %w", err)
	}
	log.Info().Str("lobby_code", l.Code).Strs("ballot", ballot).Msg("round started")
	return nil
}

// PublishTopicDecision tallies the topic votes, assigns the chameleon
// uniformly among current players, draws the secret word from the winning
// topic, and clears the ballot votes. Call only once every player has voted.
func (a *HostAuthority) PublishTopicDecision(ctx context.Context, l *lobby.Lobby) error {
	if err := a.requireHost(l); err != nil {
		return err
	}
	if l.Status != lobby.StatusVoting || l.Game == nil {
		return ErrWrongPhase
	}
	if len(l.Game.Votes) == 0 || len(l.Game.Votes) < len(l.Players) {
		return fmt.Errorf("%w: not all players voted", ErrWrongPhase)
	}

	tally := Tally(l.Game.Votes)
	topic := tally.PickWinner(a.rng)
	words := a.cfg.Topics[topic]
	if len(words) == 0 {
		return fmt.Errorf("no words configured for topic %q", topic)
	}
	secretWord := words[a.rng.Intn(len(words))]

	ids := l.PlayerIDs()
	chameleon := ids[a.rng.Intn(len(ids))]

	err := a.store.Update(ctx, lobby.Path(l.Code), map[string]any{
		"status":               string(lobby.StatusPlaying),
		"game/selectedTopic":   topic,
		"game/chameleon":       chameleon,
		"game/secretWord":      secretWord,
		"game/rolesAssignedAt": store.ServerTimestamp,
		"game/votes":           nil,
	})
	if err != nil {
		return fmt.Errorf("publish topic decision: %w", err)
	}
	log.Info().
		Str("lobby_code", l.Code).
		Str("topic", topic).
		Interface("counts", tally.Counts).
		Msg("topic decided, roles assigned")
	return nil
}

// StartDiscussion writes the discussion anchor timestamp once per round and,
// when text-clue mode is on, initializes the clue turn order from join
// order. A duplicate call aborts without touching the anchor.
func (a *HostAuthority) StartDiscussion(ctx context.Context, l *lobby.Lobby) error {
	if err := a.requireHost(l); err != nil {
		return err
	}
	if l.Status != lobby.StatusPlaying || l.Game == nil {
		return ErrWrongPhase
	}

	turnOrder := l.PlayerIDs()
	committed, err := a.store.Transaction(ctx, lobby.GamePath(l.Code), func(current any) (any, error) {
		if current == nil {
			return nil, store.ErrAborted
		}
		var g lobby.GameRound
		if err := store.Decode(current, &g); err != nil {
			return nil, err
		}
		if g.DiscussionStartedAt != 0 {
			return nil, store.ErrAborted
		}
		next := store.Clone(current)
		next = store.SetAt(next, []string{"discussionStartedAt"}, store.ServerTimestamp)
		next = store.SetAt(next, []string{"discussionDuration"}, a.cfg.DiscussionTime)
		next = store.SetAt(next, []string{"voteLockTime"}, a.cfg.VoteLockTime)
		if l.Settings.TextClueModeEnabled {
			cs, err := store.Normalize(lobby.ClueState{
				Enabled:   true,
				TurnOrder: turnOrder,
			})
			if err != nil {
				return nil, err
			}
			next = store.SetAt(next, []string{"clueState"}, cs)
		}
		return next, nil
	})
	if err != nil {
		return fmt.Errorf("start discussion: %w", err)
	}
	if committed {
		log.Info().Str("lobby_code", l.Code).Int("duration_sec", a.cfg.DiscussionTime).Msg("discussion started")
	}
	return nil
}

// OpenVoting writes votingOpenedAt only if it is still absent, so a late or
// duplicated call after a host reconnect cannot reset the vote-lock
// countdown.
func (a *HostAuthority) OpenVoting(ctx context.Context, l *lobby.Lobby) error {
	if err := a.requireHost(l); err != nil {
		return err
	}
	committed, err := a.store.Transaction(ctx, lobby.GamePath(l.Code), func(current any) (any, error) {
		if current == nil {
			return nil, store.ErrAborted
		}
		var g lobby.GameRound
		if err := store.Decode(current, &g); err != nil {
			return nil, err
		}
		if g.VotingOpenedAt != 0 {
			return nil, store.ErrAborted
		}
		return store.SetAt(store.Clone(current), []string{"votingOpenedAt"}, store.ServerTimestamp), nil
	})
	if err != nil {
		return fmt.Errorf("open voting: %w", err)
	}
	if committed {
		log.Info().Str("lobby_code", l.Code).Msg("player voting opened")
	}
	return nil
}

// PublishResults tallies the player votes and marks the round finished. Call
// only once every player has voted.
func (a *HostAuthority) PublishResults(ctx context.Context, l *lobby.Lobby) error {
	if err := a.requireHost(l); err != nil {
		return err
	}
	if l.Status != lobby.StatusPlaying || l.Game == nil || !l.Game.VotingOpen() {
		return ErrWrongPhase
	}
	if len(l.Game.PlayerVotes) == 0 || len(l.Game.PlayerVotes) < len(l.Players) {
		return fmt.Errorf("%w: not all players voted", ErrWrongPhase)
	}

	tally := Tally(l.Game.PlayerVotes)
	mostVoted := tally.PickWinner(a.rng)
	chameleon := l.Game.Chameleon

	results := lobby.Results{
		ChameleonID:     chameleon,
		ChameleonName:   l.Players[chameleon].Name,
		MostVotedID:     mostVoted,
		MostVotedName:   l.Players[mostVoted].Name,
		ChameleonCaught: mostVoted == chameleon,
		SecretWord:      l.Game.SecretWord,
		Votes:           tally.Counts,
	}

	err := a.store.Update(ctx, lobby.Path(l.Code), map[string]any{
		"status":       string(lobby.StatusFinished),
		"game/results": results,
	})
	if err != nil {
		return fmt.Errorf("publish results: %w", err)
	}
	log.Info().
		Str("lobby_code", l.Code).
		Str("most_voted", mostVoted).
		Bool("chameleon_caught", results.ChameleonCaught).
		Msg("results published")
	return nil
}

// ResetRound clears the game record wholesale and returns the lobby to the
// waiting room for a new round.
func (a *HostAuthority) ResetRound(ctx context.Context, l *lobby.Lobby) error {
	if err := a.requireHost(l); err != nil {
		return err
	}
	err := a.store.Update(ctx, lobby.Path(l.Code), map[string]any{
		"status": string(lobby.StatusWaiting),
		"game":   nil,
	})
	if err != nil {
		return fmt.Errorf("reset round: %w", err)
	}
	log.Info().Str("lobby_code", l.Code).Msg("round reset")
	return nil
}
