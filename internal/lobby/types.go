package lobby

import (
	"sort"
	"time"

	"github.com/mcdev12/chameleon/internal/store"
)

// Status is the primary discriminant of a lobby snapshot. Nested markers on
// the game round refine it into the exact client screen.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusVoting   Status = "voting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Player is one entry in a lobby's player map. JoinedAt is a server-assigned
// epoch-millisecond timestamp; join order is derived from it.
type Player struct {
	Name     string `json:"name"`
	IsHost   bool   `json:"isHost"`
	JoinedAt int64  `json:"joinedAt"`
}

// PlayerRef pairs a player with the map key it lives under.
type PlayerRef struct {
	ID string
	Player
}

// Settings are the per-lobby options fixed at creation.
type Settings struct {
	TextClueModeEnabled bool `json:"textClueModeEnabled"`
}

// Clue is a single submitted text clue.
type Clue struct {
	Text        string `json:"text"`
	SubmittedAt int64  `json:"submittedAt"`
}

// ClueState is the round-robin clue sub-record. TurnOrder is fixed at
// discussion start; CurrentTurnIndex only ever advances, by exactly one per
// accepted clue.
type ClueState struct {
	Enabled          bool            `json:"enabled"`
	TurnOrder        []string        `json:"turnOrder"`
	CurrentTurnIndex int             `json:"currentTurnIndex"`
	Clues            map[string]Clue `json:"clues,omitempty"`
	Completed        bool            `json:"completed"`
}

// CurrentTurn returns the player whose turn it is, or "" once every turn has
// been taken.
func (c *ClueState) CurrentTurn() string {
	if c == nil || c.CurrentTurnIndex >= len(c.TurnOrder) {
		return ""
	}
	return c.TurnOrder[c.CurrentTurnIndex]
}

// Results is the published outcome of a finished round.
type Results struct {
	ChameleonID     string         `json:"chameleonId"`
	ChameleonName   string         `json:"chameleonName"`
	MostVotedID     string         `json:"mostVotedId"`
	MostVotedName   string         `json:"mostVotedName"`
	ChameleonCaught bool           `json:"chameleonCaught"`
	SecretWord      string         `json:"secretWord"`
	Votes           map[string]int `json:"votes,omitempty"`
}

// GameRound is one play-through within a lobby, replaced wholesale on reset.
// Timestamps are server-assigned epoch milliseconds; a zero value means the
// field has not been written.
type GameRound struct {
	Topics              []string          `json:"topics,omitempty"`
	Votes               map[string]string `json:"votes,omitempty"`
	SelectedTopic       string            `json:"selectedTopic,omitempty"`
	Chameleon           string            `json:"chameleon,omitempty"`
	SecretWord          string            `json:"secretWord,omitempty"`
	StartedAt           int64             `json:"startedAt,omitempty"`
	RolesAssignedAt     int64             `json:"rolesAssignedAt,omitempty"`
	DiscussionStartedAt int64             `json:"discussionStartedAt,omitempty"`
	DiscussionDuration  int               `json:"discussionDuration,omitempty"`
	VoteLockTime        int               `json:"voteLockTime,omitempty"`
	VotingOpenedAt      int64             `json:"votingOpenedAt,omitempty"`
	PlayerVotes         map[string]string `json:"playerVotes,omitempty"`
	ClueState           *ClueState        `json:"clueState,omitempty"`
	Results             *Results          `json:"results,omitempty"`
}

// VotingOpen reports whether the player-vote phase has been entered, either
// by the write-once votingOpenedAt marker or by the first recorded vote.
func (g *GameRound) VotingOpen() bool {
	return g != nil && (g.VotingOpenedAt != 0 || len(g.PlayerVotes) > 0)
}

// Lobby is the decoded shared record coordinating one game session.
type Lobby struct {
	Code      string            `json:"-"`
	Host      string            `json:"host"`
	Status    Status            `json:"status"`
	CreatedAt int64             `json:"createdAt,omitempty"`
	Settings  Settings          `json:"settings,omitempty"`
	Players   map[string]Player `json:"players,omitempty"`
	Game      *GameRound        `json:"game,omitempty"`
}

// DecodeLobby turns a raw store snapshot into a typed lobby. A nil snapshot
// decodes to a nil lobby, meaning the record is absent.
func DecodeLobby(code string, snapshot any) (*Lobby, error) {
	if snapshot == nil {
		return nil, nil
	}
	var l Lobby
	if err := store.Decode(snapshot, &l); err != nil {
		return nil, err
	}
	l.Code = code
	return &l, nil
}

// PlayersInJoinOrder returns the players sorted by join time, ties broken by
// id so every client derives the same order.
func (l *Lobby) PlayersInJoinOrder() []PlayerRef {
	refs := make([]PlayerRef, 0, len(l.Players))
	for id, p := range l.Players {
		refs = append(refs, PlayerRef{ID: id, Player: p})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].JoinedAt != refs[j].JoinedAt {
			return refs[i].JoinedAt < refs[j].JoinedAt
		}
		return refs[i].ID < refs[j].ID
	})
	return refs
}

// PlayerIDs returns player ids in join order.
func (l *Lobby) PlayerIDs() []string {
	refs := l.PlayersInJoinOrder()
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}

// HasPlayer reports whether id is a current member.
func (l *Lobby) HasPlayer(id string) bool {
	_, ok := l.Players[id]
	return ok
}

// IsChameleon reports whether id holds the chameleon role this round.
func (l *Lobby) IsChameleon(id string) bool {
	return l.Game != nil && l.Game.Chameleon != "" && l.Game.Chameleon == id
}

// SecretWordFor returns the round's secret word for a player. The chameleon
// never receives it.
func (l *Lobby) SecretWordFor(id string) (string, bool) {
	if l.Game == nil || l.Game.SecretWord == "" || l.IsChameleon(id) {
		return "", false
	}
	return l.Game.SecretWord, true
}

// TimeFromMillis converts a stored epoch-millisecond timestamp to time.Time.
// Zero millis yield the zero time.
func TimeFromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
