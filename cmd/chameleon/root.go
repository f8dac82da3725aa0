package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mcdev12/chameleon/internal/config"
	"github.com/mcdev12/chameleon/internal/game"
	"github.com/mcdev12/chameleon/internal/lobby"
	"github.com/mcdev12/chameleon/internal/store"
	"github.com/mcdev12/chameleon/internal/store/memstore"
	"github.com/mcdev12/chameleon/internal/store/natsstore"
	"github.com/mcdev12/chameleon/internal/store/pgstore"
)

const releaseVersion = "0.1.0"

type options struct {
	backend    string
	configPath string
	name       string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "chameleon",
		Short:         "Play Chameleon through a shared lobby store.",
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.backend, "backend", "b", "memory", "lobby store backend: memory, nats, or postgres")
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML game config")
	pf.StringVarP(&opts.name, "name", "n", "", "player display name")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newHostCmd(opts), newJoinCmd(opts))
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetVersionTemplate("chameleon v{{.Version}}\n")

	return cmd
}

func newHostCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "host [code]",
		Short: "Create a lobby and play as its host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requested := ""
			if len(args) == 1 {
				requested = args[0]
			}
			sess, closeStore, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeStore()

			code, err := sess.CreateLobby(cmd.Context(), requested)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lobby code: %s\n", code)
			return play(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func newJoinCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "join <code>",
		Short: "Join an existing lobby",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, closeStore, err := newSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := sess.JoinLobby(cmd.Context(), args[0]); err != nil {
				return err
			}
			return play(cmd.Context(), sess, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// newSession builds the store backend and a session for one local player.
// The returned closer releases the backend after the session is done.
func newSession(ctx context.Context, opts *options) (*game.Session, func(), error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	name, err := lobby.ValidatePlayerName(opts.name)
	if err != nil {
		return nil, nil, fmt.Errorf("--name: %w", err)
	}

	clock := clockwork.NewRealClock()
	st, closeStore, err := newStore(ctx, opts.backend, clock)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(clock.Now().UnixNano()))
	sess := game.NewSession(st, cfg, clock, rng, lobby.NewPlayerID(), name)
	return sess, closeStore, nil
}

func newStore(ctx context.Context, backend string, clock clockwork.Clock) (store.Store, func(), error) {
	switch strings.ToLower(backend) {
	case "memory", "mem":
		st := memstore.New(clock)
		return st, func() { _ = st.Close() }, nil
	case "nats":
		st, err := natsstore.New(natsstore.NewConfigFromEnv(), clock)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "postgres", "pg":
		st, err := pgstore.New(ctx, pgstore.NewConfigFromEnv())
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want memory, nats, or postgres)", backend)
	}
}
