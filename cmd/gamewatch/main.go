package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gamewatch/internal/app"
	"gamewatch/internal/config"

	"github.com/spf13/cobra"
)

// errCycleFailed makes `check` exit non-zero after its summary was printed.
var errCycleFailed = errors.New("cycle failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	env := config.NewEnv()

	root := &cobra.Command{
		Use:           "gamewatch",
		Short:         "Watch tracked players and notify recipients when they are in game",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "./config.json", "config file (.json, .yaml, .toml); env GAMEWATCH_CONFIG")
	_ = env.BindPFlag("config", root.PersistentFlags().Lookup("config"))

	open := func(cmd *cobra.Command) (*app.App, error) {
		return app.NewApp(cmd.Context(), env.GetString("config"), env)
	}

	root.AddCommand(
		newServeCmd(open),
		newCheckCmd(open),
		newResolveCmd(open),
		newSeedCmd(open),
		newPlayersCmd(open),
		newHistoryCmd(open),
	)
	return root
}

type opener func(cmd *cobra.Command) (*app.App, error)

// runWithApp opens the app for a one-shot command and always closes it.
func runWithApp(open opener, fn func(ctx context.Context, a *app.App, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := open(cmd)
		if err != nil {
			return report(cmd, err)
		}
		defer a.Close()
		if err := fn(cmd.Context(), a, cmd); err != nil {
			// the printed summary already carries the cycle error
			if errors.Is(err, errCycleFailed) {
				return err
			}
			return report(cmd, err)
		}
		return nil
	}
}

func report(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
