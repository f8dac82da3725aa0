// Package natsstore backs the shared lobby store with a NATS JetStream
// key-value bucket. Each lobby code is one KV entry holding the whole lobby
// document; sub-path writes are read-modify-write loops guarded by the
// entry's revision, which gives the compare-and-swap semantics the clue
// protocol and host transitions rely on.
package natsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chameleon/internal/store"
)

const casAttempts = 8

// Config holds NATS connection settings.
type Config struct {
	URL    string
	Bucket string
}

// NewConfigFromEnv reads NATS_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{
		URL:    getEnv("NATS_URL", nats.DefaultURL),
		Bucket: getEnv("NATS_KV_BUCKET", "chameleon_lobbies"),
	}
}

type Store struct {
	nc    *nats.Conn
	kv    nats.KeyValue
	clock clockwork.Clock
}

// New connects to NATS and binds (or creates) the lobby bucket.
func New(cfg Config, clock clockwork.Clock) (*Store, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("chameleon"))
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", store.ErrUnavailable, cfg.URL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: jetstream: %v", store.ErrUnavailable, err)
	}
	kv, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      cfg.Bucket,
			Description: "chameleon lobby documents",
		})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: bucket %s: %v", store.ErrUnavailable, cfg.Bucket, err)
	}
	log.Info().Str("url", cfg.URL).Str("bucket", cfg.Bucket).Msg("nats store ready")
	return &Store{nc: nc, kv: kv, clock: clock}, nil
}

// splitPath maps a document path onto (bucket key, subpath within the
// document). The first segment is the collection and the second the lobby
// code, which becomes the KV key.
func splitPath(path string) (string, []string, error) {
	segs := store.SplitPath(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("path %q does not address a lobby", path)
	}
	return segs[1], segs[2:], nil
}

// read fetches the current document tree and revision for a key. An absent
// key yields a nil tree with revision 0.
func (s *Store) read(key string) (any, uint64, error) {
	entry, err := s.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("kv get %s: %w", key, err)
	}
	var tree any
	if err := json.Unmarshal(entry.Value(), &tree); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return tree, entry.Revision(), nil
}

// commit writes a full document back under its revision. errCASMiss means
// another writer got there first and the caller should re-read and retry.
var errCASMiss = errors.New("revision mismatch")

func (s *Store) commit(key string, tree any, rev uint64) error {
	tree = store.Prune(tree)
	if tree == nil {
		if rev == 0 {
			return nil
		}
		if err := s.kv.Delete(key, nats.LastRevision(rev)); err != nil {
			return errCASMiss
		}
		return nil
	}

	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if rev == 0 {
		if _, err := s.kv.Create(key, b); err != nil {
			return errCASMiss
		}
		return nil
	}
	if _, err := s.kv.Update(key, b, rev); err != nil {
		return errCASMiss
	}
	return nil
}

// mutate runs a read-modify-write cycle on the subtree at path, retrying the
// revision CAS a bounded number of times.
func (s *Store) mutate(ctx context.Context, path string, fn func(sub any) (any, error)) error {
	key, sub, err := splitPath(path)
	if err != nil {
		return err
	}
	for attempt := 0; attempt < casAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return store.MapContextErr(err)
		}
		tree, rev, err := s.read(key)
		if err != nil {
			return err
		}
		next, err := fn(store.Clone(store.GetAt(tree, sub)))
		if err != nil {
			return err
		}
		next = store.ResolveServerValues(next, s.clock.Now())
		err = s.commit(key, store.SetAt(tree, sub, next), rev)
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
	key, sub, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(sub) == 0 {
		// Whole-document create rides directly on the KV create, which
		// already fails on an existing key.
		v = store.Prune(store.ResolveServerValues(v, s.clock.Now()))
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		if _, err := s.kv.Create(key, b); err != nil {
			if errors.Is(err, nats.ErrKeyExists) {
				return store.ErrAlreadyExists
			}
			return fmt.Errorf("kv create %s: %w", key, err)
		}
		return nil
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
	if err := ctx.Err(); err != nil {
		return nil, store.MapContextErr(err)
	}
	key, sub, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	tree, _, err := s.read(key)
	if err != nil {
		return nil, err
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
			// Commit the unchanged value; the revision check still
			// protects us and mutate's retry loop ends.
			return cur, nil
		}
		if err != nil {
			return nil, err
		}
		n, err := store.Normalize(next)
		if err != nil {
			return nil, err
		}
		return n, nil
	})
	if err != nil {
		return false, err
	}
	return !aborted, nil
}

func (s *Store) Subscribe(ctx context.Context, path string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.UnsubscribeFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.MapContextErr(err)
	}
	key, sub, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	watcher, err := s.kv.Watch(key)
	if err != nil {
		return nil, fmt.Errorf("kv watch %s: %w", key, err)
	}

	go func() {
		delivered := false
		for entry := range watcher.Updates() {
			if entry == nil {
				// Initial replay done; an absent key never produced
				// an entry, so surface the absence explicitly.
				if !delivered {
					delivered = true
					onSnapshot(nil)
				}
				continue
			}
			delivered = true
			switch entry.Operation() {
			case nats.KeyValueDelete, nats.KeyValuePurge:
				onSnapshot(nil)
			default:
				var tree any
				if err := json.Unmarshal(entry.Value(), &tree); err != nil {
					onError(fmt.Errorf("decode %s: %w", key, err))
					continue
				}
				onSnapshot(store.GetAt(tree, sub))
			}
		}
	}()

	return func() {
		if err := watcher.Stop(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("watcher stop")
		}
	}, nil
}

func (s *Store) Close() error {
	s.nc.Close()
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
