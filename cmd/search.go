package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/youtube"
)

var flagSearchWorkers int

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Match batch tracks to YouTube videos",
	Long: `Search resolves a YouTube video for every batch track that does not
have one yet, preferring candidates whose runtime matches the catalog
duration. Matches are written back into the batch file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := creds.RequireYouTubeKey(); err != nil {
			return err
		}

		store, err := batch.Open(settings.General.BatchPath)
		if err != nil {
			return err
		}

		workers := flagSearchWorkers
		if workers == 0 {
			workers = settings.Download.SearchWorkers
		}

		client := youtube.NewClient(creds.YouTubeAPIKey, log)
		stats, err := client.Enrich(cmd.Context(), store, workers)
		if err != nil {
			return err
		}

		fmt.Printf("Matched %d tracks, %d not found, %d already resolved\n",
			stats.Matched, stats.Missed, stats.Skipped)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchWorkers, "workers", "w", 0, "Concurrent lookups (default from settings)")
	rootCmd.AddCommand(searchCmd)
}
