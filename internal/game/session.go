package game

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/chameleon/internal/config"
	"github.com/mcdev12/chameleon/internal/lobby"
	"github.com/mcdev12/chameleon/internal/store"
)

// Session drives one player's participation in one lobby. It owns the store
// subscription and a 1 Hz tick; every snapshot and every tick runs the same
// recomputation (derive, emit, host triggers), so control flow is a single
// loop rather than nested timer callbacks.
//
// All per-session state lives here. Nothing is process-global: two sessions
// in one process coexist without sharing anything but the store.
type Session struct {
	store     store.Store
	repo      *lobby.Repository
	authority *HostAuthority
	clues     *ClueProtocol
	cfg       *config.Game
	clock     clockwork.Clock

	playerID   string
	playerName string

	mu          sync.Mutex
	code        string
	current     *lobby.Lobby
	hasSnapshot bool
	pending     *lobby.Lobby
	pendingSet  bool
	lastView    ClientView
	hasView     bool
	// fired keys one-shot transitions by phase plus anchor timestamp, so
	// a repeated snapshot with the same anchor is a no-op.
	fired        map[string]bool
	readyLocally bool
	unsub        store.UnsubscribeFunc

	snapSig   chan struct{}
	views     chan ClientView
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wires a session for one local player. The store is wrapped so
// every call carries the configured operation timeout; rng feeds all
// randomized draws.
func NewSession(st store.Store, cfg *config.Game, clock clockwork.Clock, rng *rand.Rand, playerID, playerName string) *Session {
	st = store.WithTimeout(st, cfg.OperationTimeout)
	return &Session{
		store:      st,
		repo:       lobby.NewRepository(st, cfg, rng),
		authority:  NewHostAuthority(st, cfg, rng, playerID),
		clues:      NewClueProtocol(st, clock, cfg.ClueMaxLength),
		cfg:        cfg,
		clock:      clock,
		playerID:   playerID,
		playerName: playerName,
		fired:      make(map[string]bool),
		snapSig:    make(chan struct{}, 1),
		views:      make(chan ClientView, 32),
		done:       make(chan struct{}),
	}
}

// PlayerID returns the local player's id.
func (s *Session) PlayerID() string { return s.playerID }

// Code returns the joined lobby code, or "" before attach.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Views streams derived client views. Consumers that fall behind lose
// intermediate views, never the latest.
func (s *Session) Views() <-chan ClientView { return s.views }

// CreateLobby creates a fresh lobby with this player as host and attaches.
// requestedCode may be empty to draw a random code.
func (s *Session) CreateLobby(ctx context.Context, requestedCode string) (string, error) {
	code, err := s.repo.Create(ctx, s.playerID, s.playerName, requestedCode)
	if err != nil {
		return "", err
	}
	if err := s.attach(ctx, code); err != nil {
		return "", err
	}
	return code, nil
}

// JoinLobby joins an existing lobby and attaches.
func (s *Session) JoinLobby(ctx context.Context, code string) error {
	code, err := lobby.ValidateCode(code, s.cfg.LobbyCodeLength)
	if err != nil {
		return err
	}
	if err := s.repo.Join(ctx, code, s.playerID, s.playerName); err != nil {
		return err
	}
	return s.attach(ctx, code)
}

func (s *Session) attach(ctx context.Context, code string) error {
	unsub, err := s.repo.Watch(ctx, code, s.onSnapshot, s.onWatchError)
	if err != nil {
		return fmt.Errorf("watch lobby %s: %w", code, err)
	}
	s.mu.Lock()
	s.code = code
	s.unsub = unsub
	s.mu.Unlock()

	go s.run()
	return nil
}

// onSnapshot coalesces pushed snapshots into the loop: only the latest
// matters, matching the store's delivery contract.
func (s *Session) onSnapshot(l *lobby.Lobby) {
	s.mu.Lock()
	s.pending = l
	s.pendingSet = true
	s.mu.Unlock()
	select {
	case s.snapSig <- struct{}{}:
	default:
	}
}

func (s *Session) onWatchError(err error) {
	log.Error().Err(err).Str("lobby_code", s.Code()).Msg("lobby subscription error")
}

func (s *Session) run() {
	ticker := s.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.snapSig:
			s.mu.Lock()
			l, ok := s.pending, s.pendingSet
			s.pendingSet = false
			s.mu.Unlock()
			if !ok {
				continue
			}
			if l == nil {
				s.handleVanished()
				return
			}
			s.apply(l)
		case <-ticker.Chan():
			s.mu.Lock()
			l, ok := s.current, s.hasSnapshot
			s.mu.Unlock()
			if ok {
				s.apply(l)
			}
		}
	}
}

// handleVanished tears the session down after the lobby record disappeared:
// every local countdown stops with the loop, and the client returns to the
// welcome screen.
func (s *Session) handleVanished() {
	log.Info().Str("lobby_code", s.Code()).Msg("lobby vanished, tearing down")
	s.mu.Lock()
	s.current = nil
	s.hasSnapshot = false
	s.mu.Unlock()
	s.emit(ClientView{Screen: ScreenWelcome})
	s.Close()
}

// apply is the single recomputation: derive the view from the snapshot,
// publish it if it changed, then run any due host-side transition.
func (s *Session) apply(l *lobby.Lobby) {
	now := s.clock.Now()

	s.mu.Lock()
	s.current = l
	s.hasSnapshot = true
	if l.Status == lobby.StatusWaiting && len(s.fired) > 0 {
		// New round coming up; forget the old round's one-shot keys.
		s.fired = make(map[string]bool)
	}
	if l.Status != lobby.StatusPlaying {
		s.readyLocally = false
	}
	ready := s.readyLocally
	s.mu.Unlock()

	view := Derive(l, s.playerID, s.cfg, now)
	if ready && view.Screen == ScreenDiscussion {
		// This player ended discussion early; show the ballot while the
		// shared record catches up.
		view.Screen = ScreenVoting
		view.Actions.CanVotePlayer = true
		view.Actions.CanReadyToVote = false
		view.Actions.CanSubmitClue = false
		view.Countdowns = nil
	}

	s.mu.Lock()
	changed := !s.hasView || !reflect.DeepEqual(view, s.lastView)
	s.lastView = view
	s.hasView = true
	s.mu.Unlock()

	if changed {
		s.emit(view)
	}

	if l.Host == s.playerID {
		s.runHostTriggers(l, now)
	}
}

// runHostTriggers performs whichever host-gated transition the snapshot says
// is due. Each is keyed by the anchor that defines it, so it fires at most
// once per round no matter how many snapshots or ticks observe the same
// condition.
func (s *Session) runHostTriggers(l *lobby.Lobby, now time.Time) {
	g := l.Game
	if g == nil {
		return
	}

	switch l.Status {
	case lobby.StatusVoting:
		if len(g.Votes) > 0 && len(g.Votes) >= len(l.Players) {
			s.fireOnce(fmt.Sprintf("topic:%d", g.StartedAt), func(ctx context.Context) error {
				return s.authority.PublishTopicDecision(ctx, l)
			})
		}

	case lobby.StatusPlaying:
		switch {
		case g.VotingOpen():
			if len(g.PlayerVotes) > 0 && len(g.PlayerVotes) >= len(l.Players) {
				s.fireOnce(fmt.Sprintf("results:%d", g.VotingOpenedAt), func(ctx context.Context) error {
					return s.authority.PublishResults(ctx, l)
				})
			}

		case g.DiscussionStartedAt != 0:
			elapsed := Remaining(lobby.TimeFromMillis(g.DiscussionStartedAt),
				time.Duration(g.DiscussionDuration)*time.Second, now) == 0
			cluesDone := g.ClueState != nil && g.ClueState.Completed
			if elapsed || cluesDone {
				s.fireOnce(fmt.Sprintf("voteopen:%d", g.DiscussionStartedAt), func(ctx context.Context) error {
					return s.authority.OpenVoting(ctx, l)
				})
			}

		case g.RolesAssignedAt != 0:
			revealOver := Remaining(lobby.TimeFromMillis(g.RolesAssignedAt),
				time.Duration(s.cfg.RoleRevealTime)*time.Second, now) == 0
			if revealOver {
				s.fireOnce(fmt.Sprintf("discussion:%d", g.RolesAssignedAt), func(ctx context.Context) error {
					return s.authority.StartDiscussion(ctx, l)
				})
			}
		}
	}
}

// fireOnce runs fn at most once per key. A failed attempt unmarks the key so
// a later snapshot or tick retries; recoverable store timeouts heal that
// way.
func (s *Session) fireOnce(key string, fn func(context.Context) error) {
	s.mu.Lock()
	if s.fired[key] {
		s.mu.Unlock()
		return
	}
	s.fired[key] = true
	s.mu.Unlock()

	if err := fn(context.Background()); err != nil {
		log.Error().Err(err).Str("key", key).Str("lobby_code", s.Code()).Msg("host transition failed")
		s.mu.Lock()
		delete(s.fired, key)
		s.mu.Unlock()
	}
}

func (s *Session) snapshot() *lobby.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StartRound begins a new round (host only).
func (s *Session) StartRound(ctx context.Context) error {
	l := s.snapshot()
	if l == nil {
		return ErrWrongPhase
	}
	return s.authority.StartRound(ctx, l)
}

// VoteTopic casts this player's topic vote. At most one vote per ballot; the
// vote is keyed by player id so a duplicate write cannot double-count.
func (s *Session) VoteTopic(ctx context.Context, topic string) error {
	l := s.snapshot()
	if l == nil || l.Status != lobby.StatusVoting || l.Game == nil {
		return ErrWrongPhase
	}
	if _, voted := l.Game.Votes[s.playerID]; voted {
		return ErrAlreadyVoted
	}
	onBallot := false
	for _, t := range l.Game.Topics {
		if t == topic {
			onBallot = true
			break
		}
	}
	if !onBallot {
		return fmt.Errorf("%w: topic %q not on the ballot", ErrWrongPhase, topic)
	}
	return s.store.Update(ctx, lobby.TopicVotesPath(l.Code), map[string]any{
		s.playerID: topic,
	})
}

// SubmitClue submits a text clue for this player's turn.
func (s *Session) SubmitClue(ctx context.Context, text string) error {
	l := s.snapshot()
	if l == nil {
		return ErrWrongPhase
	}
	committed, err := s.clues.Submit(ctx, l.Code, s.playerID, text)
	if err != nil {
		return err
	}
	if !committed {
		return ErrNotYourTurn
	}
	return nil
}

// ReadyToVote ends discussion early for this player. The host opens the
// shared vote; everyone else switches locally and the record catches up.
func (s *Session) ReadyToVote(ctx context.Context) error {
	l := s.snapshot()
	if l == nil || l.Status != lobby.StatusPlaying || l.Game == nil || l.Game.DiscussionStartedAt == 0 {
		return ErrWrongPhase
	}
	anchor := lobby.TimeFromMillis(l.Game.DiscussionStartedAt)
	minWindow := time.Duration(s.cfg.MinDiscussionBeforeVote) * time.Second
	if Remaining(anchor, minWindow, s.clock.Now()) > 0 {
		return ErrVoteLocked
	}

	if l.Host == s.playerID {
		return s.authority.OpenVoting(ctx, l)
	}
	s.mu.Lock()
	s.readyLocally = true
	s.mu.Unlock()
	s.onSnapshot(l)
	return nil
}

// VotePlayer casts this player's accusation vote.
func (s *Session) VotePlayer(ctx context.Context, targetID string) error {
	if targetID == s.playerID {
		return ErrSelfVote
	}
	l := s.snapshot()
	if l == nil || l.Status != lobby.StatusPlaying || l.Game == nil {
		return ErrWrongPhase
	}
	if !l.HasPlayer(targetID) {
		return fmt.Errorf("%w: unknown player", ErrWrongPhase)
	}
	if _, voted := l.Game.PlayerVotes[s.playerID]; voted {
		return ErrAlreadyVoted
	}
	ready := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.readyLocally
	}()
	if !l.Game.VotingOpen() && !ready {
		return ErrVoteLocked
	}
	return s.store.Update(ctx, lobby.PlayerVotesPath(l.Code), map[string]any{
		s.playerID: targetID,
	})
}

// PlayAgain resets the lobby for a fresh round (host only).
func (s *Session) PlayAgain(ctx context.Context) error {
	l := s.snapshot()
	if l == nil {
		return ErrWrongPhase
	}
	return s.authority.ResetRound(ctx, l)
}

// Leave unsubscribes immediately and best-effort removes this player from
// the record; the departure write failing only means other clients never see
// it, which the host-handoff transaction tolerates.
func (s *Session) Leave(ctx context.Context) error {
	code := s.Code()
	s.Close()
	if code == "" {
		return nil
	}
	if err := s.repo.Leave(ctx, code, s.playerID); err != nil {
		log.Warn().Err(err).Str("lobby_code", code).Msg("leave write failed")
		return err
	}
	return nil
}

// Close stops the loop and detaches the subscription. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		unsub := s.unsub
		s.unsub = nil
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}

// emit publishes a view, evicting the oldest buffered view if the consumer
// fell behind.
func (s *Session) emit(v ClientView) {
	select {
	case s.views <- v:
		return
	default:
	}
	select {
	case <-s.views:
	default:
	}
	select {
	case s.views <- v:
	default:
	}
}
