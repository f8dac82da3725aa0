// Package memstore is an in-process implementation of the shared lobby
// store. It is the canonical backend for tests and offline play: every
// semantic the remote backends provide (field merges, CAS transactions,
// server timestamps, coalesced latest-value subscriptions) behaves the same
// way here, just without a network underneath.
package memstore

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/chameleon/internal/store"
)

type Store struct {
	clock clockwork.Clock

	mu      sync.Mutex
	root    any
	subs    map[int]*subscription
	nextSub int
	closed  bool
}

type subscription struct {
	segs  []string
	fn    store.SnapshotFunc
	errFn store.ErrorFunc

	deliverMu sync.Mutex
	latest    any
	hasLatest bool
	last      any
	hasLast   bool

	notify chan struct{}
	stop   chan struct{}
	once   sync.Once
}

// New creates an empty store. Server timestamps resolve against clock.
func New(clock clockwork.Clock) *Store {
	return &Store{
		clock: clock,
		subs:  make(map[int]*subscription),
	}
}

func (s *Store) Create(ctx context.Context, path string, value any) error {
	if err := ctx.Err(); err != nil {
		return store.MapContextErr(err)
	}
	v, err := s.prepare(value)
	if err != nil {
		return err
	}
	segs := store.SplitPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if store.GetAt(s.root, segs) != nil {
		return store.ErrAlreadyExists
	}
	s.root = store.Prune(store.SetAt(s.root, segs, v))
	s.notifyLocked()
	return nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	v, err := s.Get(ctx, path)
	return v != nil, err
}

func (s *Store) Get(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.MapContextErr(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return store.Clone(store.GetAt(s.root, store.SplitPath(path))), nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return store.MapContextErr(err)
	}
	prepared := make(map[string]any, len(fields))
	for k, v := range fields {
		p, err := s.prepare(v)
		if err != nil {
			return err
		}
		prepared[k] = p
	}
	segs := store.SplitPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.root = store.Prune(store.MergeAt(s.root, segs, prepared))
	s.notifyLocked()
	return nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return store.MapContextErr(err)
	}
	segs := store.SplitPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	s.root = store.Prune(store.SetAt(s.root, segs, nil))
	s.notifyLocked()
	return nil
}

func (s *Store) Transaction(ctx context.Context, path string, fn store.TxnFunc) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, store.MapContextErr(err)
	}
	segs := store.SplitPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, store.ErrClosed
	}
	current := store.Clone(store.GetAt(s.root, segs))
	next, err := fn(current)
	if err != nil {
		if errors.Is(err, store.ErrAborted) {
			return false, nil
		}
		return false, err
	}
	v, err := s.prepare(next)
	if err != nil {
		return false, err
	}
	s.root = store.Prune(store.SetAt(s.root, segs, v))
	s.notifyLocked()
	return true, nil
}

func (s *Store) Subscribe(ctx context.Context, path string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.UnsubscribeFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.MapContextErr(err)
	}

	sub := &subscription{
		segs:   store.SplitPath(path),
		fn:     onSnapshot,
		errFn:  onError,
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	sub.publish(store.Clone(store.GetAt(s.root, sub.segs)))
	s.mu.Unlock()

	go sub.run()

	unsub := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.close()
	}
	return unsub, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = map[int]*subscription{}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	return nil
}

// prepare normalizes a write value and resolves server timestamps.
func (s *Store) prepare(v any) (any, error) {
	n, err := store.Normalize(v)
	if err != nil {
		return nil, err
	}
	return store.ResolveServerValues(n, s.clock.Now()), nil
}

// notifyLocked hands the latest value at each subscribed path to its
// delivery goroutine. Intermediate values may be coalesced; only the latest
// is guaranteed to arrive, matching the contract remote backends give.
func (s *Store) notifyLocked() {
	for _, sub := range s.subs {
		sub.publish(store.Clone(store.GetAt(s.root, sub.segs)))
	}
}

func (sub *subscription) publish(v any) {
	sub.deliverMu.Lock()
	sub.latest = v
	sub.hasLatest = true
	sub.deliverMu.Unlock()
	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *subscription) run() {
	for {
		select {
		case <-sub.stop:
			return
		case <-sub.notify:
		}

		sub.deliverMu.Lock()
		v := sub.latest
		// Duplicate writes that do not change the subscribed value are
		// dropped, like a snapshot listener that only fires on change.
		if sub.hasLast && reflect.DeepEqual(v, sub.last) {
			sub.deliverMu.Unlock()
			continue
		}
		sub.last = store.Clone(v)
		sub.hasLast = true
		sub.deliverMu.Unlock()

		sub.fn(v)
	}
}

func (sub *subscription) close() {
	sub.once.Do(func() { close(sub.stop) })
}
