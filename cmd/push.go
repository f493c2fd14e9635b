package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/youtube"
)

var flagPushPrivacy string

var pushCmd = &cobra.Command{
	Use:   "push <title>",
	Short: "Create a YouTube playlist from the batch's resolved videos",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := creds.RequireYouTubeOAuth(); err != nil {
			return err
		}
		switch flagPushPrivacy {
		case youtube.PrivacyPrivate, youtube.PrivacyUnlisted, youtube.PrivacyPublic:
		default:
			return fmt.Errorf("privacy must be private, unlisted or public")
		}

		b, err := batch.Load(settings.General.BatchPath)
		if err != nil {
			return err
		}

		client := youtube.NewClient(creds.YouTubeAPIKey, log, youtube.WithToken(creds.YouTubeOAuthToken))
		result, err := client.Push(cmd.Context(), *b, args[0], flagPushPrivacy)
		if err != nil {
			return err
		}

		fmt.Printf("Playlist created: %s\n", result.URL)
		fmt.Printf("Added %d videos\n", result.Added)
		for _, id := range result.FailedIDs {
			fmt.Printf("  could not add: https://www.youtube.com/watch?v=%s\n", id)
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVarP(&flagPushPrivacy, "privacy", "p", youtube.PrivacyPrivate, "Playlist privacy (private, unlisted, public)")
	rootCmd.AddCommand(pushCmd)
}
