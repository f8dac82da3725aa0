package game

import "errors"

var (
	// ErrNotHost means a host-gated transition was attempted by another
	// player.
	ErrNotHost = errors.New("only the host can do that")

	// ErrNotEnoughPlayers blocks starting a round below the minimum.
	ErrNotEnoughPlayers = errors.New("not enough players")

	// ErrNotYourTurn is the user-visible outcome of a clue transaction
	// that did not commit.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrSelfVote rejects a player voting for themselves.
	ErrSelfVote = errors.New("cannot vote for yourself")

	// ErrAlreadyVoted rejects a second vote within the same phase.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrEmptyClue rejects a blank clue submission.
	ErrEmptyClue = errors.New("clue must not be empty")

	// ErrClueTooLong rejects a clue over the configured length.
	ErrClueTooLong = errors.New("clue too long")

	// ErrWrongPhase means the requested action does not apply to the
	// current game phase.
	ErrWrongPhase = errors.New("not available in this phase")

	// ErrVoteLocked means player voting has not opened yet.
	ErrVoteLocked = errors.New("voting not open yet")
)
