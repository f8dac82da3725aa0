package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/chameleon/internal/store"
)

func TestCreateRejectsExisting(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := s.Create(ctx, "lobbies/ABC", map[string]any{"status": "waiting"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := s.Create(ctx, "lobbies/ABC", map[string]any{"status": "waiting"})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("duplicate create: got %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateResolvesServerTimestamps(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	s := New(clock)
	ctx := context.Background()

	err := s.Update(ctx, "lobbies/ABC", map[string]any{
		"createdAt": store.ServerTimestamp,
		"status":    "waiting",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(ctx, "lobbies/ABC/createdAt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != float64(1700000000000) {
		t.Fatalf("createdAt = %v, want resolved fake-clock millis", got)
	}
}

func TestUpdateMergesWithoutTouchingSiblings(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := s.Update(ctx, "lobbies/ABC", map[string]any{"status": "waiting", "host": "p1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Update(ctx, "lobbies/ABC", map[string]any{"status": "voting"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got, _ := s.Get(ctx, "lobbies/ABC/status"); got != "voting" {
		t.Errorf("status = %v, want voting", got)
	}
	if got, _ := s.Get(ctx, "lobbies/ABC/host"); got != "p1" {
		t.Errorf("host = %v, want p1 untouched", got)
	}
}

func TestRemoveAndEmptyDocReadsAbsent(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := s.Create(ctx, "lobbies/ABC", map[string]any{"status": "waiting"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Remove(ctx, "lobbies/ABC/status"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	exists, err := s.Exists(ctx, "lobbies/ABC")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("fully emptied document should read absent")
	}
	// Removing an absent path is not an error.
	if err := s.Remove(ctx, "lobbies/GONE"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
}

func TestTransactionAbortLeavesValueUntouched(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := s.Create(ctx, "lobbies/ABC", map[string]any{"status": "waiting"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	committed, err := s.Transaction(ctx, "lobbies/ABC", func(current any) (any, error) {
		return nil, store.ErrAborted
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if committed {
		t.Fatal("aborted transaction reported committed")
	}
	if got, _ := s.Get(ctx, "lobbies/ABC/status"); got != "waiting" {
		t.Fatalf("status = %v, want waiting after abort", got)
	}
}

func TestTransactionCommitsResult(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	committed, err := s.Transaction(ctx, "lobbies/ABC", func(current any) (any, error) {
		if current != nil {
			t.Errorf("expected nil current for absent doc, got %v", current)
		}
		return map[string]any{"status": "waiting"}, nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if !committed {
		t.Fatal("transaction did not commit")
	}
	if got, _ := s.Get(ctx, "lobbies/ABC/status"); got != "waiting" {
		t.Fatalf("status = %v, want waiting", got)
	}
}

func waitSnapshot(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribeDeliversInitialAndChanges(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	snaps := make(chan any, 16)
	unsub, err := s.Subscribe(ctx, "lobbies/ABC", func(v any) { snaps <- v }, func(err error) {
		t.Errorf("subscription error: %v", err)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	// Initial state: absent.
	if v := waitSnapshot(t, snaps); v != nil {
		t.Fatalf("initial snapshot = %v, want nil", v)
	}

	if err := s.Create(ctx, "lobbies/ABC", map[string]any{"status": "waiting"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	v := waitSnapshot(t, snaps)
	m, ok := v.(map[string]any)
	if !ok || m["status"] != "waiting" {
		t.Fatalf("snapshot = %v, want status waiting", v)
	}

	if err := s.Remove(ctx, "lobbies/ABC"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if v := waitSnapshot(t, snaps); v != nil {
		t.Fatalf("snapshot after delete = %v, want nil", v)
	}
}

func TestSubscribeDropsNoChangeWrites(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := s.Create(ctx, "lobbies/ABC", map[string]any{"status": "waiting"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Update(ctx, "lobbies/XYZ", map[string]any{"status": "waiting"}); err != nil {
		t.Fatalf("seed other: %v", err)
	}

	snaps := make(chan any, 16)
	unsub, err := s.Subscribe(ctx, "lobbies/ABC/status", func(v any) { snaps <- v }, func(err error) {
		t.Errorf("subscription error: %v", err)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsub()

	if v := waitSnapshot(t, snaps); v != "waiting" {
		t.Fatalf("initial = %v, want waiting", v)
	}

	// A write elsewhere does not change the subscribed value.
	if err := s.Update(ctx, "lobbies/XYZ", map[string]any{"status": "voting"}); err != nil {
		t.Fatalf("update other: %v", err)
	}
	// Then a real change arrives; it must be the next delivery.
	if err := s.Update(ctx, "lobbies/ABC", map[string]any{"status": "voting"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if v := waitSnapshot(t, snaps); v != "voting" {
		t.Fatalf("next delivery = %v, want voting (no-change write must be dropped)", v)
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	ctx := context.Background()

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Create(ctx, "lobbies/ABC", map[string]any{}); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("create after close: got %v, want ErrClosed", err)
	}
	if _, err := s.Get(ctx, "lobbies/ABC"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("get after close: got %v, want ErrClosed", err)
	}
	// Close is idempotent.
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
