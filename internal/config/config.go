// Package config holds the game options consumed by the coordination core.
// Values come from built-in defaults, overlaid by an optional YAML file,
// overlaid by CHAMELEON_* environment variables.
package config

import (
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Game is the configuration surface recognized by the core. All durations
// are whole seconds, matching the countdown granularity clients render.
type Game struct {
	MinPlayers              int  `yaml:"min_players"`
	MaxPlayers              int  `yaml:"max_players"`
	RoleRevealTime          int  `yaml:"role_reveal_time"`
	MinDiscussionBeforeVote int  `yaml:"min_discussion_before_vote"`
	DiscussionTime          int  `yaml:"discussion_time"`
	VoteLockTime            int  `yaml:"vote_lock_time"`
	ClueMaxLength           int  `yaml:"clue_max_length"`
	LobbyCodeLength         int  `yaml:"lobby_code_length"`
	TextClueModeEnabled     bool `yaml:"text_clue_mode"`

	// OperationTimeout bounds every individual store call.
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// Topics maps each candidate topic to its secret-word list.
	Topics map[string][]string `yaml:"topics"`
}

const (
	lobbyCodeMinLength = 3
	lobbyCodeMaxLength = 8
	ballotSize         = 5
)

// Default returns the stock game configuration.
func Default() *Game {
	return &Game{
		MinPlayers:              3,
		MaxPlayers:              8,
		RoleRevealTime:          12,
		MinDiscussionBeforeVote: 15,
		DiscussionTime:          180,
		VoteLockTime:            15,
		ClueMaxLength:           60,
		LobbyCodeLength:         6,
		TextClueModeEnabled:     false,
		OperationTimeout:        10 * time.Second,
		Topics:                  DefaultTopics(),
	}
}

// Load reads a YAML config file over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Game, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *Game) applyEnv() {
	g.MinPlayers = getEnvAsInt("CHAMELEON_MIN_PLAYERS", g.MinPlayers)
	g.MaxPlayers = getEnvAsInt("CHAMELEON_MAX_PLAYERS", g.MaxPlayers)
	g.DiscussionTime = getEnvAsInt("CHAMELEON_DISCUSSION_TIME", g.DiscussionTime)
	g.VoteLockTime = getEnvAsInt("CHAMELEON_VOTE_LOCK_TIME", g.VoteLockTime)
	g.RoleRevealTime = getEnvAsInt("CHAMELEON_ROLE_REVEAL_TIME", g.RoleRevealTime)
	g.LobbyCodeLength = getEnvAsInt("CHAMELEON_LOBBY_CODE_LENGTH", g.LobbyCodeLength)
	if v := os.Getenv("CHAMELEON_TEXT_CLUE_MODE"); v != "" {
		g.TextClueModeEnabled = v == "1" || v == "true"
	}
}

// Validate rejects configurations the state machine cannot run on.
func (g *Game) Validate() error {
	if g.MinPlayers < 2 {
		return fmt.Errorf("min_players must be at least 2, got %d", g.MinPlayers)
	}
	if g.MaxPlayers < g.MinPlayers {
		return fmt.Errorf("max_players %d below min_players %d", g.MaxPlayers, g.MinPlayers)
	}
	if g.LobbyCodeLength < lobbyCodeMinLength || g.LobbyCodeLength > lobbyCodeMaxLength {
		return fmt.Errorf("lobby_code_length must be between %d and %d, got %d",
			lobbyCodeMinLength, lobbyCodeMaxLength, g.LobbyCodeLength)
	}
	if g.DiscussionTime <= 0 {
		return fmt.Errorf("discussion_time must be positive, got %d", g.DiscussionTime)
	}
	if len(g.Topics) < ballotSize {
		return fmt.Errorf("need at least %d topics, got %d", ballotSize, len(g.Topics))
	}
	for topic, words := range g.Topics {
		if len(words) == 0 {
			return fmt.Errorf("topic %q has no words", topic)
		}
	}
	return nil
}

// RandomBallot draws the fixed-size topic ballot for one round.
func (g *Game) RandomBallot(rng *rand.Rand) []string {
	all := make([]string, 0, len(g.Topics))
	for t := range g.Topics {
		all = append(all, t)
	}
	// Deterministic base order so a seeded rng yields a stable ballot.
	sort.Strings(all)
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > ballotSize {
		all = all[:ballotSize]
	}
	return all
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
