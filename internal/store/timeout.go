package store

import (
	"context"
	"time"
)

// timeoutStore races every call against a fixed deadline so a slow backend
// cannot freeze the caller's loop. Timed-out calls surface ErrTimeout and
// their in-flight effect is assumed not applied.
type timeoutStore struct {
	inner Store
	d     time.Duration
}

// WithTimeout wraps a store so each operation carries an explicit deadline.
func WithTimeout(inner Store, d time.Duration) Store {
	if d <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, d: d}
}

func (s *timeoutStore) Create(ctx context.Context, path string, value any) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return MapContextErr(s.inner.Create(ctx, path, value))
}

func (s *timeoutStore) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	ok, err := s.inner.Exists(ctx, path)
	return ok, MapContextErr(err)
}

func (s *timeoutStore) Get(ctx context.Context, path string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	v, err := s.inner.Get(ctx, path)
	return v, MapContextErr(err)
}

func (s *timeoutStore) Update(ctx context.Context, path string, fields map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return MapContextErr(s.inner.Update(ctx, path, fields))
}

func (s *timeoutStore) Remove(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	return MapContextErr(s.inner.Remove(ctx, path))
}

func (s *timeoutStore) Transaction(ctx context.Context, path string, fn TxnFunc) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	committed, err := s.inner.Transaction(ctx, path, fn)
	return committed, MapContextErr(err)
}

func (s *timeoutStore) Subscribe(ctx context.Context, path string, onSnapshot SnapshotFunc, onError ErrorFunc) (UnsubscribeFunc, error) {
	// The deadline covers attaching only; the subscription itself is
	// long-lived.
	attachCtx, cancel := context.WithTimeout(ctx, s.d)
	defer cancel()
	unsub, err := s.inner.Subscribe(attachCtx, path, onSnapshot, onError)
	return unsub, MapContextErr(err)
}

func (s *timeoutStore) Close() error {
	return s.inner.Close()
}
