package game

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/chameleon/internal/config"
	"github.com/mcdev12/chameleon/internal/lobby"
	"github.com/mcdev12/chameleon/internal/store/memstore"
)

type hostFixture struct {
	authority *HostAuthority
	store     *memstore.Store
	clock     *clockwork.FakeClock
	cfg       *config.Game
	code      string
}

func newHostFixture(t *testing.T, textClues bool) *hostFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))
	st := memstore.New(clock)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.TextClueModeEnabled = textClues
	rng := rand.New(rand.NewSource(11))

	repo := lobby.NewRepository(st, cfg, rng)
	ctx := context.Background()
	code, err := repo.Create(ctx, "p1", "alice", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, p := range []struct{ id, name string }{{"p2", "bob"}, {"p3", "carol"}} {
		clock.Advance(time.Second)
		if err := repo.Join(ctx, code, p.id, p.name); err != nil {
			t.Fatalf("join %s: %v", p.id, err)
		}
	}

	return &hostFixture{
		authority: NewHostAuthority(st, cfg, rng, "p1"),
		store:     st,
		clock:     clock,
		cfg:       cfg,
		code:      code,
	}
}

func (f *hostFixture) lobby(t *testing.T) *lobby.Lobby {
	t.Helper()
	raw, err := f.store.Get(context.Background(), lobby.Path(f.code))
	if err != nil {
		t.Fatalf("get lobby: %v", err)
	}
	l, err := lobby.DecodeLobby(f.code, raw)
	if err != nil {
		t.Fatalf("decode lobby: %v", err)
	}
	return l
}

func (f *hostFixture) voteAllTopics(t *testing.T, topic string) {
	t.Helper()
	err := f.store.Update(context.Background(), lobby.TopicVotesPath(f.code), map[string]any{
		"p1": topic, "p2": topic, "p3": topic,
	})
	if err != nil {
		t.Fatalf("seed topic votes: %v", err)
	}
}

func TestStartRound(t *testing.T) {
	f := newHostFixture(t, false)
	ctx := context.Background()

	if err := f.authority.StartRound(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start round: %v", err)
	}

	l := f.lobby(t)
	if l.Status != lobby.StatusVoting {
		t.Fatalf("status = %q, want voting", l.Status)
	}
	if len(l.Game.Topics) != 5 {
		t.Fatalf("ballot size = %d, want 5", len(l.Game.Topics))
	}
	if l.Game.StartedAt == 0 {
		t.Fatal("startedAt not server-assigned")
	}
}

func TestStartRoundGuards(t *testing.T) {
	f := newHostFixture(t, false)
	ctx := context.Background()
	l := f.lobby(t)

	other := NewHostAuthority(f.store, f.cfg, rand.New(rand.NewSource(1)), "p2")
	if err := other.StartRound(ctx, l); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host start: got %v, want ErrNotHost", err)
	}

	delete(l.Players, "p3")
	if err := f.authority.StartRound(ctx, l); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("short start: got %v, want ErrNotEnoughPlayers", err)
	}
}

func TestPublishTopicDecision(t *testing.T) {
	f := newHostFixture(t, false)
	ctx := context.Background()

	if err := f.authority.StartRound(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start round: %v", err)
	}

	// Not yet: nobody has voted.
	if err := f.authority.PublishTopicDecision(ctx, f.lobby(t)); !errors.Is(err, ErrWrongPhase) {
		t.Fatalf("early publish: got %v, want ErrWrongPhase", err)
	}

	topic := f.lobby(t).Game.Topics[0]
	f.voteAllTopics(t, topic)
	f.clock.Advance(time.Second)

	if err := f.authority.PublishTopicDecision(ctx, f.lobby(t)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	l := f.lobby(t)
	if l.Status != lobby.StatusPlaying {
		t.Fatalf("status = %q, want playing", l.Status)
	}
	if l.Game.SelectedTopic != topic {
		t.Fatalf("selectedTopic = %q, want unanimous %q", l.Game.SelectedTopic, topic)
	}
	if !l.HasPlayer(l.Game.Chameleon) {
		t.Fatalf("chameleon %q is not a member", l.Game.Chameleon)
	}
	found := false
	for _, w := range f.cfg.Topics[topic] {
		if w == l.Game.SecretWord {
			found = true
		}
	}
	if !found {
		t.Fatalf("secret word %q not in topic %q", l.Game.SecretWord, topic)
	}
	if len(l.Game.Votes) != 0 {
		t.Fatalf("ballot votes not cleared: %v", l.Game.Votes)
	}
	if l.Game.RolesAssignedAt != f.clock.Now().UnixMilli() {
		t.Fatalf("rolesAssignedAt = %d, want server now", l.Game.RolesAssignedAt)
	}
}

func TestStartDiscussionWriteOnce(t *testing.T) {
	f := newHostFixture(t, true)
	ctx := context.Background()

	if err := f.authority.StartRound(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start round: %v", err)
	}
	f.voteAllTopics(t, f.lobby(t).Game.Topics[0])
	if err := f.authority.PublishTopicDecision(ctx, f.lobby(t)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := f.authority.StartDiscussion(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start discussion: %v", err)
	}
	l := f.lobby(t)
	first := l.Game.DiscussionStartedAt
	if first == 0 {
		t.Fatal("discussion anchor not written")
	}
	if l.Game.DiscussionDuration != f.cfg.DiscussionTime {
		t.Fatalf("duration = %d", l.Game.DiscussionDuration)
	}
	cs := l.Game.ClueState
	if cs == nil || !cs.Enabled || len(cs.TurnOrder) != 3 || cs.TurnOrder[0] != "p1" {
		t.Fatalf("clue state = %+v, want join-order turns", cs)
	}

	// A duplicate call after the clock moved must not shift the anchor.
	f.clock.Advance(10 * time.Second)
	if err := f.authority.StartDiscussion(ctx, f.lobby(t)); err != nil {
		t.Fatalf("duplicate start discussion: %v", err)
	}
	if got := f.lobby(t).Game.DiscussionStartedAt; got != first {
		t.Fatalf("anchor moved from %d to %d on duplicate call", first, got)
	}
}

func TestOpenVotingWriteOnce(t *testing.T) {
	f := newHostFixture(t, false)
	ctx := context.Background()

	if err := f.authority.StartRound(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start round: %v", err)
	}
	f.voteAllTopics(t, f.lobby(t).Game.Topics[0])
	if err := f.authority.PublishTopicDecision(ctx, f.lobby(t)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := f.authority.StartDiscussion(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start discussion: %v", err)
	}

	if err := f.authority.OpenVoting(ctx, f.lobby(t)); err != nil {
		t.Fatalf("open voting: %v", err)
	}
	first := f.lobby(t).Game.VotingOpenedAt
	if first == 0 {
		t.Fatal("votingOpenedAt not written")
	}

	f.clock.Advance(5 * time.Second)
	if err := f.authority.OpenVoting(ctx, f.lobby(t)); err != nil {
		t.Fatalf("duplicate open voting: %v", err)
	}
	if got := f.lobby(t).Game.VotingOpenedAt; got != first {
		t.Fatalf("vote-lock anchor moved from %d to %d", first, got)
	}
}

func TestPublishResultsAndReset(t *testing.T) {
	f := newHostFixture(t, false)
	ctx := context.Background()

	if err := f.authority.StartRound(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start round: %v", err)
	}
	f.voteAllTopics(t, f.lobby(t).Game.Topics[0])
	if err := f.authority.PublishTopicDecision(ctx, f.lobby(t)); err != nil {
		t.Fatalf("publish topic: %v", err)
	}
	if err := f.authority.StartDiscussion(ctx, f.lobby(t)); err != nil {
		t.Fatalf("start discussion: %v", err)
	}
	if err := f.authority.OpenVoting(ctx, f.lobby(t)); err != nil {
		t.Fatalf("open voting: %v", err)
	}

	chameleon := f.lobby(t).Game.Chameleon
	err := f.store.Update(ctx, lobby.PlayerVotesPath(f.code), map[string]any{
		"p1": chameleon, "p2": chameleon, "p3": chameleon,
	})
	if err != nil {
		t.Fatalf("seed player votes: %v", err)
	}

	if err := f.authority.PublishResults(ctx, f.lobby(t)); err != nil {
		t.Fatalf("publish results: %v", err)
	}

	l := f.lobby(t)
	if l.Status != lobby.StatusFinished {
		t.Fatalf("status = %q, want finished", l.Status)
	}
	r := l.Game.Results
	if r == nil {
		t.Fatal("results not published")
	}
	if r.MostVotedID != chameleon || !r.ChameleonCaught {
		t.Fatalf("results = %+v, want unanimous catch of %s", r, chameleon)
	}
	if r.SecretWord == "" || r.ChameleonName == "" {
		t.Fatalf("results incomplete: %+v", r)
	}

	if err := f.authority.ResetRound(ctx, l); err != nil {
		t.Fatalf("reset: %v", err)
	}
	l = f.lobby(t)
	if l.Status != lobby.StatusWaiting || l.Game != nil {
		t.Fatalf("after reset: status=%q game=%+v", l.Status, l.Game)
	}
	if len(l.Players) != 3 {
		t.Fatalf("players lost on reset: %d", len(l.Players))
	}
}
