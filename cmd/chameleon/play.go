package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mcdev12/chameleon/internal/game"
)

// play runs the interactive loop: derived views are rendered as they arrive,
// and stdin lines are mapped onto session operations. It returns when the
// player quits, the lobby vanishes, or input runs out.
func play(ctx context.Context, sess *game.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return sess.Leave(context.Background())
		case view, ok := <-sess.Views():
			if !ok {
				return nil
			}
			render(out, view)
			if view.Screen == game.ScreenWelcome {
				// The lobby record is gone; nothing left to do here.
				return nil
			}
		case line, ok := <-lines:
			if !ok {
				return sess.Leave(ctx)
			}
			quit, err := dispatch(ctx, sess, line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func dispatch(ctx context.Context, sess *game.Session, line string) (bool, error) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch strings.ToLower(cmd) {
	case "":
		return false, nil
	case "start":
		return false, sess.StartRound(ctx)
	case "vote":
		return false, sess.VoteTopic(ctx, strings.TrimSpace(arg))
	case "clue":
		return false, sess.SubmitClue(ctx, arg)
	case "ready":
		return false, sess.ReadyToVote(ctx)
	case "accuse":
		return false, sess.VotePlayer(ctx, strings.TrimSpace(arg))
	case "again":
		return false, sess.PlayAgain(ctx)
	case "quit", "exit":
		return true, sess.Leave(ctx)
	default:
		return false, fmt.Errorf("unknown command %q (start, vote, clue, ready, accuse, again, quit)", cmd)
	}
}

func render(out io.Writer, v game.ClientView) {
	switch v.Screen {
	case game.ScreenWelcome:
		fmt.Fprintln(out, "-- lobby closed --")

	case game.ScreenLobby:
		fmt.Fprintf(out, "-- waiting room (%d players) --\n", len(v.Players))
		for _, p := range v.Players {
			marker := ""
			if p.IsHost {
				marker = " (host)"
			}
			fmt.Fprintf(out, "   %s%s\n", p.Name, marker)
		}
		if v.Actions.CanStartRound {
			fmt.Fprintln(out, "   type 'start' to begin")
		}

	case game.ScreenTopicVote:
		fmt.Fprintf(out, "-- topic vote (%d/%d in) --\n", v.TopicVotesIn, len(v.Players))
		for _, t := range v.Topics {
			fmt.Fprintf(out, "   %s\n", t)
		}
		if v.Actions.CanVoteTopic {
			fmt.Fprintln(out, "   type 'vote <topic>'")
		}

	case game.ScreenRoleReveal:
		fmt.Fprintf(out, "-- topic: %s --\n", v.Topic)
		if !v.RoleVisible {
			fmt.Fprintln(out, "   role hidden")
			break
		}
		if v.IsChameleon {
			fmt.Fprintln(out, "   you are the CHAMELEON - blend in!")
		} else {
			fmt.Fprintf(out, "   secret word: %s\n", v.SecretWord)
		}
		printCountdowns(out, v.Countdowns)

	case game.ScreenDiscussion:
		fmt.Fprintf(out, "-- discussion, topic: %s --\n", v.Topic)
		printCountdowns(out, v.Countdowns)
		for id, clue := range v.Clues {
			fmt.Fprintf(out, "   clue from %s: %s\n", playerName(v, id), clue.Text)
		}
		if v.Actions.CanSubmitClue {
			fmt.Fprintln(out, "   your turn: type 'clue <word>'")
		} else if v.ClueTurn != "" {
			fmt.Fprintf(out, "   waiting for %s's clue\n", playerName(v, v.ClueTurn))
		}
		if v.Actions.CanReadyToVote {
			fmt.Fprintln(out, "   type 'ready' to move to the vote")
		}

	case game.ScreenVoting:
		fmt.Fprintf(out, "-- voting (%d/%d in) --\n", v.PlayerVotesIn, len(v.Players))
		printCountdowns(out, v.Countdowns)
		if v.Actions.CanVotePlayer {
			fmt.Fprintln(out, "   type 'accuse <player-id>':")
			for _, p := range v.Players {
				fmt.Fprintf(out, "   %s  %s\n", p.ID, p.Name)
			}
		}

	case game.ScreenResults:
		fmt.Fprintln(out, "-- results --")
		if r := v.Results; r != nil {
			fmt.Fprintf(out, "   the chameleon was %s\n", r.ChameleonName)
			fmt.Fprintf(out, "   most voted: %s\n", r.MostVotedName)
			if r.ChameleonCaught {
				fmt.Fprintln(out, "   the chameleon was caught!")
			} else {
				fmt.Fprintln(out, "   the chameleon escaped!")
			}
			fmt.Fprintf(out, "   the secret word was %q\n", r.SecretWord)
		}
		if v.Actions.CanPlayAgain {
			fmt.Fprintln(out, "   type 'again' for another round")
		}
	}
}

func printCountdowns(out io.Writer, cds []game.Countdown) {
	for _, cd := range cds {
		fmt.Fprintf(out, "   %s: %ds left\n", cd.Kind, cd.SecondsLeft)
	}
}

func playerName(v game.ClientView, id string) string {
	for _, p := range v.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}
