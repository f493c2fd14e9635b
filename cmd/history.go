package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tunesync/tunesync/internal/config"
	"github.com/tunesync/tunesync/internal/history"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent fetch runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := history.Open(history.DefaultPath(config.ConfigDir()))
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Recent(cmd.Context(), flagHistoryLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}

		for _, r := range runs {
			fmt.Printf("%s  %-8s %3d/%3d completed  %2d failed  %s  %s\n",
				r.FinishedAt.Format(time.DateTime), r.State,
				r.Completed, r.Total, r.Failed,
				r.Elapsed.Round(time.Second), r.BatchPath)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "How many runs to show")
	rootCmd.AddCommand(historyCmd)
}
