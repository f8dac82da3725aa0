// Package pgstore backs the shared lobby store with Postgres. Each lobby is
// one row holding the document as JSONB plus a version counter; sub-path
// writes are optimistic-CAS read-modify-write loops on the version. Change
// propagation rides LISTEN/NOTIFY, with a fallback poll for notifications
// lost across reconnects.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chameleon/internal/store"
)

const (
	casAttempts      = 8
	notifyChannel    = "chameleon_lobby_changed"
	fallbackInterval = 30 * time.Second
)

type Store struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	closed bool
}

// New connects, pings, and ensures the lobbies table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS lobbies (
			code    TEXT PRIMARY KEY,
			data    JSONB NOT NULL,
			version BIGINT NOT NULL DEFAULT 1
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create lobbies table: %w", err)
	}
	log.Info().Str("database", cfg.Database).Msg("postgres store ready")
	return &Store{pool: pool}, nil
}

func splitPath(path string) (string, []string, error) {
	segs := store.SplitPath(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("path %q does not address a lobby", path)
	}
	return segs[1], segs[2:], nil
}

// serverNow reads the database clock so anchor timestamps are
// server-assigned rather than trusting any client's clock.
func (s *Store) serverNow(ctx context.Context) (time.Time, error) {
	var ms int64
	err := s.pool.QueryRow(ctx, `SELECT (extract(epoch FROM now()) * 1000)::bigint`).Scan(&ms)
	if err != nil {
		return time.Time{}, fmt.Errorf("read server time: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func (s *Store) read(ctx context.Context, code string) (any, int64, error) {
	var data []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT data, version FROM lobbies WHERE code = $1`, code,
	).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read lobby %s: %w", code, err)
	}
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, 0, fmt.Errorf("decode lobby %s: %w", code, err)
	}
	return tree, version, nil
}

var errCASMiss = errors.New("version mismatch")

// commit writes a full document under its version and notifies listeners.
func (s *Store) commit(ctx context.Context, code string, tree any, version int64) error {
	tree = store.Prune(tree)

	var tag int64
	if tree == nil {
		if version == 0 {
			return nil
		}
		ct, err := s.pool.Exec(ctx,
			`DELETE FROM lobbies WHERE code = $1 AND version = $2`, code, version)
		if err != nil {
			return fmt.Errorf("delete lobby %s: %w", code, err)
		}
		tag = ct.RowsAffected()
	} else {
		b, err := json.Marshal(tree)
		if err != nil {
			return fmt.Errorf("encode lobby %s: %w", code, err)
		}
		var ct pgconn.CommandTag
		if version == 0 {
			ct, err = s.pool.Exec(ctx,
				`INSERT INTO lobbies (code, data) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`,
				code, b)
		} else {
			ct, err = s.pool.Exec(ctx,
				`UPDATE lobbies SET data = $2, version = version + 1 WHERE code = $1 AND version = $3`,
				code, b, version)
		}
		if err != nil {
			return fmt.Errorf("write lobby %s: %w", code, err)
		}
		tag = ct.RowsAffected()
	}

	if tag == 0 {
		return errCASMiss
	}
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, code); err != nil {
		// Delivery falls back to the poll ticker.
		log.Warn().Err(err).Str("lobby_code", code).Msg("pg_notify failed")
	}
	return nil
}

func (s *Store) mutate(ctx context.Context, path string, fn func(sub any) (any, error)) error {
	code, sub, err := splitPath(path)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return store.MapContextErr(err)
		}
		tree, version, err := s.read(ctx, code)
		if err != nil {
			return err
		}
		next, err := fn(store.Clone(store.GetAt(tree, sub)))
		if err != nil {
			return err
		}
		now, err := s.serverNow(ctx)
		if err != nil {
			return err
		}
		next = store.ResolveServerValues(next, now)
		err = s.commit(ctx, code, store.SetAt(tree, sub, next), version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errCASMiss) {
			return err
		}
	}
	return store.ErrConflict
}

func (s *Store) Create(ctx context.Context, path string, value any) error {
	v, err := store.Normalize(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, path, func(cur any) (any, error) {
		if cur != nil {
			return nil, store.ErrAlreadyExists
		}
		return v, nil
	})
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	v, err := s.Get(ctx, path)
	return v != nil, err
}

func (s *Store) Get(ctx context.Context, path string) (any, error) {
	code, sub, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	tree, _, err := s.read(ctx, code)
	if err != nil {
		return nil, store.MapContextErr(err)
	}
	return store.GetAt(tree, sub), nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	prepared := make(map[string]any, len(fields))
	for k, v := range fields {
		n, err := store.Normalize(v)
		if err != nil {
			return err
		}
		prepared[k] = n
	}
	return s.mutate(ctx, path, func(cur any) (any, error) {
		return store.MergeAt(cur, nil, prepared), nil
	})
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.mutate(ctx, path, func(any) (any, error) {
		return nil, nil
	})
}

func (s *Store) Transaction(ctx context.Context, path string, fn store.TxnFunc) (bool, error) {
	aborted := false
	err := s.mutate(ctx, path, func(cur any) (any, error) {
		aborted = false
		next, err := fn(cur)
		if errors.Is(err, store.ErrAborted) {
			aborted = true
			return cur, nil
		}
		if err != nil {
			return nil, err
		}
		return store.Normalize(next)
	})
	if err != nil {
		return false, err
	}
	return !aborted, nil
}

// Subscribe listens for change notifications on a dedicated connection and
// re-reads the document on each one. A fallback poll catches notifications
// dropped while the listener reconnects.
func (s *Store) Subscribe(ctx context.Context, path string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.UnsubscribeFunc, error) {
	code, sub, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	// The subscription outlives the attach context.
	subCtx, cancel := context.WithCancel(context.Background())

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if _, err := conn.Exec(ctx, `LISTEN `+notifyChannel); err != nil {
		conn.Release()
		cancel()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	var deliverMu sync.Mutex
	var last any
	hasLast := false
	deliver := func() {
		tree, _, err := s.read(subCtx, code)
		if err != nil {
			if subCtx.Err() == nil {
				onError(err)
			}
			return
		}
		v := store.GetAt(tree, sub)
		deliverMu.Lock()
		if hasLast && reflect.DeepEqual(v, last) {
			deliverMu.Unlock()
			return
		}
		last = store.Clone(v)
		hasLast = true
		deliverMu.Unlock()
		onSnapshot(v)
	}

	notifications := make(chan string, 16)
	go func() {
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					close(notifications)
					return
				}
				onError(fmt.Errorf("wait for notification: %w", err))
				close(notifications)
				return
			}
			select {
			case notifications <- n.Payload:
			default:
				// Coalesced; the poll ticker covers the gap.
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(fallbackInterval)
		defer ticker.Stop()

		deliver()
		for {
			select {
			case <-subCtx.Done():
				return
			case payload, ok := <-notifications:
				if !ok {
					return
				}
				if payload == code {
					deliver()
				}
			case <-ticker.C:
				deliver()
			}
		}
	}()

	return func() { cancel() }, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.pool.Close()
	return nil
}
