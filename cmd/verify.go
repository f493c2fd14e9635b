package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/reconcile"
)

var flagVerifyApply bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check batch state against the files on disk",
	Long: `Verify compares every track record with the music directory: completed
tracks must have a plausible audio file, stale in-progress markers are
reported, and unknown audio files are listed as orphans. Without --apply
nothing is changed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := batch.Open(settings.General.BatchPath)
		if err != nil {
			return err
		}

		reconciler := reconcile.New(store, settings.General.MusicDir, log)
		report, err := reconciler.Run(!flagVerifyApply)
		if err != nil {
			return err
		}

		if report.Empty() {
			fmt.Println("Batch state matches the music directory.")
		} else {
			fmt.Println(report.String())
			if !flagVerifyApply {
				fmt.Println("\nRun with --apply to write these corrections.")
			}
		}

		counts := store.Count()
		fmt.Printf("\n%d tracks: %d completed, %d pending, %d failed\n",
			counts.Total(), counts.Completed, counts.Pending, counts.Failed)
		return nil
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&flagVerifyApply, "apply", false, "Persist the corrections instead of only reporting them")
	rootCmd.AddCommand(verifyCmd)
}
