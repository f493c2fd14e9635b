package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/config"
	"github.com/tunesync/tunesync/internal/logger"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Shared state built once in the persistent pre-run.
var (
	settings *config.Settings
	creds    config.Credentials
	log      *zap.Logger

	flagBatch   string
	flagDir     string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tunesync",
	Short: "Sync Spotify playlists into a local music library",
	Long: `tunesync exports Spotify playlists, matches each track to a YouTube
video, downloads the audio with automatic resume and bot-detection backoff,
tags the files, and can push the matched videos back as a YouTube playlist.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.LoadSettings()
		if err != nil {
			return err
		}
		if flagBatch != "" {
			settings.General.BatchPath = flagBatch
		}
		if flagDir != "" {
			settings.General.MusicDir = flagDir
		}

		creds = config.LoadCredentials(
			filepath.Join(config.ConfigDir(), ".env"),
			".env",
		)

		logCfg := logger.DefaultConfig(config.ConfigDir(), settings.General.LogRetentionCount)
		if flagVerbose {
			logCfg.Level = logger.DebugLevel
			logCfg.Console = true
		}
		log, err = logger.New(logCfg)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ExecuteContext runs the root command under a cancellable context so a
// SIGINT drains in-flight downloads instead of killing them mid-write.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagBatch, "batch", "b", "", "Batch file path (default from settings)")
	rootCmd.PersistentFlags().StringVarP(&flagDir, "music-dir", "d", "", "Music output directory (default from settings)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging to stderr")
	rootCmd.SetVersionTemplate("tunesync version {{.Version}}\n")
}
