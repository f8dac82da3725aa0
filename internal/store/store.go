package store

import (
	"context"
)

// TxnFunc transforms the current value at a path into its next value.
// current is nil when the path is absent. Returning ErrAborted leaves the
// value untouched and reports the transaction as not committed. Returning a
// nil next value removes the path.
type TxnFunc func(current any) (next any, err error)

// SnapshotFunc receives the latest value at a subscribed path. A nil
// snapshot means the path is absent (e.g. the document was deleted).
type SnapshotFunc func(snapshot any)

// ErrorFunc receives asynchronous subscription failures.
type ErrorFunc func(err error)

// UnsubscribeFunc detaches a subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Store is the shared document store the game coordinates through. Paths are
// slash-separated (e.g. "lobbies/ABCDEF/game/votes"). Values are JSON trees:
// map[string]any, []any, string, float64, bool or nil. Writes may carry the
// ServerTimestamp sentinel anywhere in the value; backends substitute their
// authoritative time at commit.
//
// Subscriptions deliver the latest value eventually; intermediate values may
// be coalesced and no cross-path write ordering is guaranteed.
type Store interface {
	// Create writes value at path, failing with ErrAlreadyExists if the
	// path is already present.
	Create(ctx context.Context, path string, value any) error

	// Exists reports whether a non-nil value is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Get returns the value at path, or nil if absent.
	Get(ctx context.Context, path string) (any, error)

	// Update merges the named child fields into the value at path without
	// touching siblings. Field keys may themselves be slash-separated
	// ("game/selectedTopic"). A nil field value removes that child.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Remove deletes the value at path. Removing an absent path is not an
	// error.
	Remove(ctx context.Context, path string) error

	// Transaction applies fn atomically to the value at path, retrying on
	// concurrent-write conflicts. It reports whether the final value was
	// committed. fn aborting via ErrAborted yields (false, nil); any other
	// error from fn is returned as (false, err).
	Transaction(ctx context.Context, path string, fn TxnFunc) (bool, error)

	// Subscribe pushes the current value at path and every subsequent
	// change to onSnapshot until unsubscribed.
	Subscribe(ctx context.Context, path string, onSnapshot SnapshotFunc, onError ErrorFunc) (UnsubscribeFunc, error)

	// Close releases the backend connection.
	Close() error
}

// serverValue is the wire form Firebase-style stores use for values the
// server fills in at commit time.
type serverValue struct{}

func (serverValue) MarshalJSON() ([]byte, error) {
	return []byte(`{".sv":"timestamp"}`), nil
}

// ServerTimestamp marks a field to be replaced with the store's time, in
// milliseconds since the epoch, when the write commits.
var ServerTimestamp serverValue
