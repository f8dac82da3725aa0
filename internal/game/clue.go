package game

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chameleon/internal/lobby"
	"github.com/mcdev12/chameleon/internal/store"
)

// ClueProtocol runs the round-robin text-clue exchange as compare-and-swap
// transactions over the clueState sub-record. The CAS is what guarantees at
// most one accepted clue per turn: a double-click or a retry after a timeout
// observes the already-advanced turn index and is rejected without
// committing.
type ClueProtocol struct {
	store  store.Store
	clock  clockwork.Clock
	maxLen int
}

// NewClueProtocol wires the protocol. maxLen bounds clue text length.
func NewClueProtocol(st store.Store, clock clockwork.Clock, maxLen int) *ClueProtocol {
	return &ClueProtocol{store: st, clock: clock, maxLen: maxLen}
}

// Submit records playerID's clue for the current turn. It reports whether
// the write committed; a false result with nil error means the CAS lost the
// turn (out of turn, duplicate, completed, or clue mode not active), which
// callers surface as "not your turn" rather than a failure.
func (p *ClueProtocol) Submit(ctx context.Context, code, playerID, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, ErrEmptyClue
	}
	if p.maxLen > 0 && len(text) > p.maxLen {
		return false, fmt.Errorf("%w: max %d characters", ErrClueTooLong, p.maxLen)
	}

	committed, err := p.store.Transaction(ctx, lobby.ClueStatePath(code), func(current any) (any, error) {
		if current == nil {
			return nil, store.ErrAborted
		}
		var cs lobby.ClueState
		if err := store.Decode(current, &cs); err != nil {
			return nil, err
		}
		if !cs.Enabled || cs.Completed {
			return nil, store.ErrAborted
		}
		if cs.CurrentTurn() != playerID {
			return nil, store.ErrAborted
		}
		if _, already := cs.Clues[playerID]; already {
			return nil, store.ErrAborted
		}

		if cs.Clues == nil {
			cs.Clues = make(map[string]lobby.Clue, len(cs.TurnOrder))
		}
		cs.Clues[playerID] = lobby.Clue{
			Text:        text,
			SubmittedAt: p.clock.Now().UnixMilli(),
		}
		cs.CurrentTurnIndex++
		cs.Completed = cs.CurrentTurnIndex >= len(cs.TurnOrder)
		return cs, nil
	})
	if err != nil {
		return false, fmt.Errorf("submit clue: %w", err)
	}
	if committed {
		log.Debug().Str("lobby_code", code).Str("player_id", playerID).Msg("clue accepted")
	}
	return committed, nil
}
