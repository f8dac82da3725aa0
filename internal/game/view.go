package game

import (
	"time"

	"github.com/mcdev12/chameleon/internal/config"
	"github.com/mcdev12/chameleon/internal/lobby"
)

// Screen is the client surface a lobby snapshot resolves to.
type Screen string

const (
	ScreenWelcome    Screen = "welcome"
	ScreenLobby      Screen = "lobby"
	ScreenTopicVote  Screen = "topic_vote"
	ScreenRoleReveal Screen = "role_reveal"
	ScreenDiscussion Screen = "discussion"
	ScreenVoting     Screen = "voting"
	ScreenResults    Screen = "results"
)

// Actions are the operations currently enabled for the local player.
type Actions struct {
	CanStartRound  bool
	CanVoteTopic   bool
	CanSubmitClue  bool
	CanReadyToVote bool
	CanVotePlayer  bool
	CanPlayAgain   bool
}

// ClientView is the full derivation of one snapshot for one player: which
// screen to show, which anchored countdowns are live, and which actions are
// enabled. It is a pure function of (snapshot, player, now), so deriving the
// same snapshot twice yields an identical view.
type ClientView struct {
	Screen     Screen
	IsHost     bool
	Players    []lobby.PlayerRef
	Countdowns []Countdown
	Actions    Actions

	// Topic-vote phase.
	Topics       []string
	TopicVotesIn int

	// Role reveal. SecretWord is empty for the chameleon; it must never
	// be delivered to them.
	Topic       string
	IsChameleon bool
	SecretWord  string
	RoleVisible bool

	// Discussion phase, text-clue mode.
	ClueTurn string
	Clues    map[string]lobby.Clue

	// Player-vote phase.
	PlayerVotesIn int

	Results *lobby.Results
}

// Derive maps a lobby snapshot to the local client view. A nil lobby means
// the record was deleted: the client falls back to the welcome screen with
// every countdown torn down.
func Derive(l *lobby.Lobby, playerID string, cfg *config.Game, now time.Time) ClientView {
	if l == nil {
		return ClientView{Screen: ScreenWelcome}
	}

	view := ClientView{
		IsHost:  l.Host == playerID,
		Players: l.PlayersInJoinOrder(),
	}

	switch l.Status {
	case lobby.StatusVoting:
		deriveTopicVote(&view, l, playerID)
	case lobby.StatusPlaying:
		derivePlaying(&view, l, playerID, cfg, now)
	case lobby.StatusFinished:
		view.Screen = ScreenResults
		if l.Game != nil {
			view.Results = l.Game.Results
		}
		view.Actions.CanPlayAgain = view.IsHost
	default:
		view.Screen = ScreenLobby
		view.Actions.CanStartRound = view.IsHost && len(l.Players) >= cfg.MinPlayers
	}
	return view
}

func deriveTopicVote(view *ClientView, l *lobby.Lobby, playerID string) {
	view.Screen = ScreenTopicVote
	if l.Game == nil {
		return
	}
	view.Topics = l.Game.Topics
	view.TopicVotesIn = len(l.Game.Votes)
	_, voted := l.Game.Votes[playerID]
	view.Actions.CanVoteTopic = !voted
}

func derivePlaying(view *ClientView, l *lobby.Lobby, playerID string, cfg *config.Game, now time.Time) {
	g := l.Game
	if g == nil {
		// Status flipped before the round record landed; hold the
		// waiting room until the next snapshot converges.
		view.Screen = ScreenLobby
		return
	}

	view.Topic = g.SelectedTopic
	view.IsChameleon = l.IsChameleon(playerID)
	view.SecretWord, _ = l.SecretWordFor(playerID)

	switch {
	case g.VotingOpen():
		deriveVoting(view, l, playerID, cfg, now)
	case g.DiscussionStartedAt != 0:
		deriveDiscussion(view, l, playerID, cfg, now)
	default:
		deriveRoleReveal(view, g, cfg, now)
	}
}

func deriveVoting(view *ClientView, l *lobby.Lobby, playerID string, cfg *config.Game, now time.Time) {
	g := l.Game
	view.Screen = ScreenVoting
	view.PlayerVotesIn = len(g.PlayerVotes)

	lockSeconds := g.VoteLockTime
	if lockSeconds == 0 {
		lockSeconds = cfg.VoteLockTime
	}
	anchor := lobby.TimeFromMillis(g.VotingOpenedAt)
	locked := false
	if !anchor.IsZero() {
		cd := NewCountdown(CountdownVoteLock, anchor, lockSeconds, now)
		locked = cd.SecondsLeft > 0
		if locked {
			view.Countdowns = append(view.Countdowns, cd)
		}
	}

	_, voted := g.PlayerVotes[playerID]
	view.Actions.CanVotePlayer = !voted && !locked
}

func deriveDiscussion(view *ClientView, l *lobby.Lobby, playerID string, cfg *config.Game, now time.Time) {
	g := l.Game
	view.Screen = ScreenDiscussion

	anchor := lobby.TimeFromMillis(g.DiscussionStartedAt)
	duration := g.DiscussionDuration
	if duration == 0 {
		duration = cfg.DiscussionTime
	}
	view.Countdowns = append(view.Countdowns,
		NewCountdown(CountdownDiscussion, anchor, duration, now))

	// Ready-to-vote unlocks after the minimum discussion window.
	view.Actions.CanReadyToVote = Remaining(anchor,
		time.Duration(cfg.MinDiscussionBeforeVote)*time.Second, now) == 0

	if cs := g.ClueState; cs != nil && cs.Enabled && !cs.Completed {
		view.ClueTurn = cs.CurrentTurn()
		view.Clues = cs.Clues
		view.Actions.CanSubmitClue = view.ClueTurn == playerID
	} else if cs != nil {
		view.Clues = cs.Clues
	}
}

func deriveRoleReveal(view *ClientView, g *lobby.GameRound, cfg *config.Game, now time.Time) {
	view.Screen = ScreenRoleReveal
	anchor := lobby.TimeFromMillis(g.RolesAssignedAt)
	if anchor.IsZero() {
		view.RoleVisible = true
		return
	}
	cd := NewCountdown(CountdownRoleReveal, anchor, cfg.RoleRevealTime, now)
	// The role hides again once the reveal window closes, so a shoulder
	// surfer can't read it off an idle screen.
	view.RoleVisible = cd.SecondsLeft > 0
	if view.RoleVisible {
		view.Countdowns = append(view.Countdowns, cd)
	}
}
