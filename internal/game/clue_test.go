package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/chameleon/internal/lobby"
	"github.com/mcdev12/chameleon/internal/store"
	"github.com/mcdev12/chameleon/internal/store/memstore"
)

func newClueFixture(t *testing.T, turnOrder []string) (*ClueProtocol, *memstore.Store) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	st := memstore.New(clock)
	t.Cleanup(func() { _ = st.Close() })

	err := st.Create(context.Background(), lobby.ClueStatePath("ABCDEF"), lobby.ClueState{
		Enabled:   true,
		TurnOrder: turnOrder,
	})
	if err != nil {
		t.Fatalf("seed clue state: %v", err)
	}
	return NewClueProtocol(st, clock, 60), st
}

func getClueState(t *testing.T, st *memstore.Store) lobby.ClueState {
	t.Helper()
	raw, err := st.Get(context.Background(), lobby.ClueStatePath("ABCDEF"))
	if err != nil {
		t.Fatalf("get clue state: %v", err)
	}
	var cs lobby.ClueState
	if err := store.Decode(raw, &cs); err != nil {
		t.Fatalf("decode clue state: %v", err)
	}
	return cs
}

func TestSubmitAdvancesTurn(t *testing.T) {
	p, st := newClueFixture(t, []string{"a", "b", "c"})
	ctx := context.Background()

	committed, err := p.Submit(ctx, "ABCDEF", "a", "  stripes  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !committed {
		t.Fatal("in-turn submit did not commit")
	}

	cs := getClueState(t, st)
	if cs.CurrentTurnIndex != 1 {
		t.Fatalf("turn index = %d, want 1", cs.CurrentTurnIndex)
	}
	if cs.Clues["a"].Text != "stripes" {
		t.Fatalf("clue = %+v, want trimmed text", cs.Clues["a"])
	}
	if cs.Clues["a"].SubmittedAt != 1700000000000 {
		t.Fatalf("submittedAt = %d", cs.Clues["a"].SubmittedAt)
	}
	if cs.Completed {
		t.Fatal("round marked complete after one of three clues")
	}
}

func TestSubmitOutOfTurnRejected(t *testing.T) {
	p, st := newClueFixture(t, []string{"a", "b", "c"})
	ctx := context.Background()

	committed, err := p.Submit(ctx, "ABCDEF", "c", "spots")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if committed {
		t.Fatal("out-of-turn submit committed")
	}
	if cs := getClueState(t, st); cs.CurrentTurnIndex != 0 || len(cs.Clues) != 0 {
		t.Fatalf("state changed by rejected submit: %+v", cs)
	}
}

func TestSubmitDuplicateRejected(t *testing.T) {
	p, _ := newClueFixture(t, []string{"a", "b", "c"})
	ctx := context.Background()

	if committed, err := p.Submit(ctx, "ABCDEF", "a", "stripes"); err != nil || !committed {
		t.Fatalf("first submit: committed=%v err=%v", committed, err)
	}
	// A retry of the same submission sees the advanced turn and loses.
	committed, err := p.Submit(ctx, "ABCDEF", "a", "stripes")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if committed {
		t.Fatal("duplicate submit committed twice")
	}
}

func TestSubmitCompletesAfterLastTurn(t *testing.T) {
	p, st := newClueFixture(t, []string{"a", "b"})
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if committed, err := p.Submit(ctx, "ABCDEF", id, "clue-"+id); err != nil || !committed {
			t.Fatalf("submit %s: committed=%v err=%v", id, committed, err)
		}
	}
	cs := getClueState(t, st)
	if !cs.Completed {
		t.Fatal("round not complete after every turn taken")
	}
	if cs.CurrentTurn() != "" {
		t.Fatalf("current turn = %q after completion", cs.CurrentTurn())
	}

	// Nothing commits once completed.
	if committed, _ := p.Submit(ctx, "ABCDEF", "a", "extra"); committed {
		t.Fatal("submit committed after completion")
	}
}

func TestSubmitValidation(t *testing.T) {
	p, _ := newClueFixture(t, []string{"a"})
	ctx := context.Background()

	if _, err := p.Submit(ctx, "ABCDEF", "a", "   "); !errors.Is(err, ErrEmptyClue) {
		t.Fatalf("blank clue: got %v, want ErrEmptyClue", err)
	}
	long := make([]byte, 61)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := p.Submit(ctx, "ABCDEF", "a", string(long)); !errors.Is(err, ErrClueTooLong) {
		t.Fatalf("long clue: got %v, want ErrClueTooLong", err)
	}
}

func TestSubmitWithoutClueStateRejected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := memstore.New(clock)
	t.Cleanup(func() { _ = st.Close() })
	p := NewClueProtocol(st, clock, 60)

	committed, err := p.Submit(context.Background(), "ABCDEF", "a", "stripes")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if committed {
		t.Fatal("submit committed with no clue state present")
	}
}
