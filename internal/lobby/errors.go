package lobby

import "errors"

var (
	// ErrLobbyNotFound is returned when joining a code with no record.
	ErrLobbyNotFound = errors.New("lobby not found")

	// ErrLobbyFull is returned when the lobby is at max capacity.
	ErrLobbyFull = errors.New("lobby is full")

	// ErrGameInProgress is returned when joining after the round started.
	ErrGameInProgress = errors.New("game already started")

	// ErrCodeTaken is returned when a host-chosen code already exists.
	ErrCodeTaken = errors.New("lobby code already taken")

	// ErrNoUniqueCode means code generation kept colliding.
	ErrNoUniqueCode = errors.New("could not generate a unique lobby code")

	// ErrInvalidName is a locally recovered validation failure.
	ErrInvalidName = errors.New("invalid player name")

	// ErrInvalidCode is a locally recovered validation failure.
	ErrInvalidCode = errors.New("invalid lobby code")
)
