package store

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the backend could not be reached at all.
	ErrUnavailable = errors.New("store: unavailable")

	// ErrTimeout means a store call exceeded its deadline. The in-flight
	// effect is assumed not applied.
	ErrTimeout = errors.New("store: operation timed out")

	// ErrAlreadyExists is returned by Create when the path is taken.
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrAborted is returned from a TxnFunc to abort without committing.
	ErrAborted = errors.New("store: transaction aborted")

	// ErrConflict means a transaction lost the CAS race on every retry.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// MapContextErr folds context cancellation into the store error taxonomy so
// callers see ErrTimeout rather than a raw deadline error.
func MapContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
