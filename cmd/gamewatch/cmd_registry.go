package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"gamewatch/internal/app"
	"gamewatch/internal/registry"

	"github.com/spf13/cobra"
)

func newResolveCmd(open opener) *cobra.Command {
	var name, region string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve summoner names to puuids",
		Long: "Without flags, resolve every tracked player that has no puuid yet.\n" +
			"With --name and --region, resolve that player and add it when untracked.",
		Args: cobra.NoArgs,
		RunE: runWithApp(open, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			if (name == "") != (region == "") {
				return errors.New("--name and --region must be given together")
			}
			res, err := a.Resolve(ctx, name, region)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "summoner name")
	cmd.Flags().StringVar(&region, "region", "", "platform region, e.g. na1, euw1, kr")
	return cmd
}

func newSeedCmd(open opener) *cobra.Command {
	var players []string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add players to the registry unless already tracked",
		Long: "Add players given as --player name#region. Without flags the config\n" +
			"`players` list is used, then GAMEWATCH_PLAYER_NAMES / GAMEWATCH_PLAYER_REGIONS.",
		Args: cobra.NoArgs,
		RunE: runWithApp(open, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			seeds := make([]registry.Seed, 0, len(players))
			for _, p := range players {
				s, err := registry.ParseSeed(p)
				if err != nil {
					return err
				}
				seeds = append(seeds, s)
			}
			res, err := a.Seed(ctx, seeds)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		}),
	}
	cmd.Flags().StringArrayVar(&players, "player", nil, "player as name#region (repeatable)")
	return cmd
}

func newPlayersCmd(open opener) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "players",
		Short: "List tracked players",
		Args:  cobra.NoArgs,
		RunE: runWithApp(open, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			players, err := a.Players(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), players)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPUUID\tLAST CHECKED\tACTIVE GAME")
			for _, p := range players {
				puuid := p.PUUID
				if puuid == "" {
					puuid = "-"
				}
				game := "-"
				if p.ActiveGameID != 0 {
					game = fmt.Sprint(p.ActiveGameID)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, puuid, fmtTime(p.LastChecked), game)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newHistoryCmd(open opener) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List delivered notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: runWithApp(open, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			recs, err := a.History(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), recs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SENT AT\tPLAYER\tRECIPIENT\tCHANNEL\tMODE\tTYPE")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", fmtTime(r.SentAt), r.PlayerName, r.Recipient, r.Channel, r.GameMode, r.GameType)
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of records")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}
