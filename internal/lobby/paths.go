package lobby

import "github.com/mcdev12/chameleon/internal/store"

// Document path layout under the shared store. These paths are addressed
// individually for partial updates so sibling fields are never clobbered.
const Root = "lobbies"

func Path(code string) string {
	return store.JoinPath(Root, code)
}

func PlayerPath(code, playerID string) string {
	return store.JoinPath(Root, code, "players", playerID)
}

func GamePath(code string) string {
	return store.JoinPath(Root, code, "game")
}

func TopicVotesPath(code string) string {
	return store.JoinPath(Root, code, "game", "votes")
}

func PlayerVotesPath(code string) string {
	return store.JoinPath(Root, code, "game", "playerVotes")
}

func ClueStatePath(code string) string {
	return store.JoinPath(Root, code, "game", "clueState")
}
