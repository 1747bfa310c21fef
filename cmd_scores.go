package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robalobadob/gridentify/assets"
	"github.com/robalobadob/gridentify/internal/client"
	"github.com/robalobadob/gridentify/internal/leaderboard"
	"github.com/robalobadob/gridentify/internal/store"
)

var (
	scoresDaily  bool
	scoresServer string
)

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Print the leaderboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if scoresServer != "" {
			if scoresDaily {
				return fmt.Errorf("--daily reads the local database; %s only serves the overall list", scoresServer)
			}
			top, err := client.Scores(cmd.Context(), scoresServer)
			if err != nil {
				return err
			}
			printTop(cmd.OutOrStdout(), top)
			return nil
		}

		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.Migrate(db, assets.Migrations()); err != nil {
			return err
		}

		top, err := leaderboard.NewStore(db).Top(cmd.Context(), cfg.LeaderboardSize, scoresDaily)
		if err != nil {
			return err
		}
		printTop(cmd.OutOrStdout(), top)
		return nil
	},
}

func printTop(out io.Writer, top []leaderboard.Entry) {
	if len(top) == 0 {
		fmt.Fprintln(out, "no scores yet")
		return
	}
	for i, e := range top {
		fmt.Fprintf(out, "%2d. %-16s %d\n", i+1, e.Name, e.Score)
	}
}

func init() {
	scoresCmd.Flags().BoolVar(&scoresDaily, "daily", false, "only games from the last 24 hours")
	scoresCmd.Flags().Int("limit", 0, "rows to print (LEADERBOARD_SIZE)")
	scoresCmd.Flags().StringVar(&scoresServer, "server", "", "read the list from this /ws/scores URL instead of the database")
	rootCmd.AddCommand(scoresCmd)
}
