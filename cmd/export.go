package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tunesync/tunesync/internal/spotify"
)

var (
	flagExportOut  string
	flagExportList bool
	flagExportUser string
)

var exportCmd = &cobra.Command{
	Use:   "export [playlist]",
	Short: "Export a Spotify playlist into a batch file",
	Long: `Export fetches every track of a Spotify playlist and writes a fresh
batch file with all tracks pending. The playlist may be given as a share
URL, a spotify: URI or a bare playlist ID.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := creds.RequireSpotify(); err != nil {
			return err
		}
		client := spotify.NewClient(spotify.Credentials{
			ClientID:     creds.SpotifyClientID,
			ClientSecret: creds.SpotifyClientSecret,
		}, log)

		if flagExportList {
			if flagExportUser == "" {
				return fmt.Errorf("--user is required with --list")
			}
			playlists, err := client.Playlists(cmd.Context(), flagExportUser)
			if err != nil {
				return err
			}
			fmt.Printf("Found %d playlists:\n\n", len(playlists))
			for i, pl := range playlists {
				fmt.Printf("%d. %s (%d tracks) [%s]\n", i+1, pl.Name, pl.Tracks, pl.ID)
			}
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("playlist URL or ID required")
		}
		playlistID := spotify.ExtractPlaylistID(args[0])
		if playlistID == "" {
			return fmt.Errorf("could not extract a playlist ID from %q", args[0])
		}

		b, err := client.Export(cmd.Context(), playlistID)
		if err != nil {
			return err
		}

		out := flagExportOut
		if out == "" {
			out = settings.General.BatchPath
		}
		if err := b.Save(out); err != nil {
			return err
		}
		fmt.Printf("Exported %d tracks to %s\n", len(b.Tracks), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&flagExportOut, "output", "o", "", "Output batch file (default from settings)")
	exportCmd.Flags().BoolVarP(&flagExportList, "list", "l", false, "List a user's playlists and exit")
	exportCmd.Flags().StringVarP(&flagExportUser, "user", "u", "", "Spotify user ID for --list")
	rootCmd.AddCommand(exportCmd)
}
