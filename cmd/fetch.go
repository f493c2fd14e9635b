package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tunesync/tunesync/internal/batch"
	"github.com/tunesync/tunesync/internal/config"
	"github.com/tunesync/tunesync/internal/download"
	"github.com/tunesync/tunesync/internal/fetch"
	"github.com/tunesync/tunesync/internal/history"
	"github.com/tunesync/tunesync/internal/tag"
	"github.com/tunesync/tunesync/internal/tui"
)

var (
	flagFetchWorkers int
	flagFetchNoTUI   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download all pending tracks, resuming where the last run stopped",
	Long: `Fetch reconciles the batch against the music directory, then drains
every pending track through the download pool. Interrupted runs pick up where
they left off; completed files are never downloaded twice.

Exit codes: 0 all tracks completed, 1 run error, 2 some tracks remain
failed or pending, 3 there was nothing to do.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workers := flagFetchWorkers
		if workers < 0 {
			return fmt.Errorf("workers must not be negative")
		}
		if !cmd.Flags().Changed("workers") {
			workers = settings.Download.Workers
		}

		fetcher := fetch.NewYTDLPFetcher(fetch.YTDLPConfig{
			Binary:       settings.Download.YTDLPBinary,
			AudioFormat:  settings.Download.AudioFormat,
			AudioQuality: settings.Download.AudioQuality,
		}, log)

		opts := download.ResumeOptions{
			BatchPath:   settings.General.BatchPath,
			OutputDir:   settings.General.MusicDir,
			Workers:     workers,
			Fetcher:     fetcher,
			Tagger:      tag.NewDefault(log),
			RetryPolicy: settings.RetryPolicy(),
			Log:         log,
		}

		useTUI := !flagFetchNoTUI && stdoutIsTerminal()
		var report download.ResumeReport
		var runErr error

		if useTUI {
			events := make(chan tea.Msg, 100)
			opts.Events = events

			done := make(chan struct{})
			go func() {
				defer close(done)
				report, runErr = download.Resume(cmd.Context(), opts)
				close(events)
			}()
			if err := tui.Run(cmd.Context(), events, trackTotal(opts.BatchPath)); err != nil {
				log.Warn("progress view failed", zap.Error(err))
			}
			<-done
		} else {
			report, runErr = download.Resume(cmd.Context(), opts)
		}

		recordRun(report)

		if runErr != nil {
			if errors.Is(runErr, download.ErrBatchLocked) {
				return fmt.Errorf("another tunesync run owns this batch: %v", runErr)
			}
			return runErr
		}

		printReport(report)
		if code := report.Result.ExitCode(); code != 0 {
			os.Exit(code)
		}
		return nil
	},
}

func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func trackTotal(batchPath string) int {
	b, err := batch.Load(batchPath)
	if err != nil {
		return 0
	}
	return b.Count().Total()
}

func printReport(report download.ResumeReport) {
	if !report.PreReport.Empty() {
		fmt.Println("Reconciled before run:")
		fmt.Println(report.PreReport.String())
	}
	fmt.Printf("%s: %d/%d completed, %d failed\n",
		report.Result, report.Counts.Completed, report.Counts.Total(), report.Counts.Failed)
	for _, f := range report.Summary.Failed {
		fmt.Printf("  failed: %s (%s after %d attempts)\n", f.Name, f.LastError, f.Attempts)
	}
	for _, tf := range report.Summary.TagFailures {
		fmt.Printf("  tagging failed: %s (%s)\n", tf.Name, tf.Err)
	}
}

func recordRun(report download.ResumeReport) {
	if report.Summary.RunID == "" {
		return
	}
	db, err := history.Open(history.DefaultPath(config.ConfigDir()))
	if err != nil {
		log.Warn("history unavailable", zap.Error(err))
		return
	}
	defer db.Close()

	// The run may have been cancelled; the archive write still happens.
	err = db.Record(context.Background(), history.Run{
		RunID:      report.Summary.RunID,
		BatchPath:  settings.General.BatchPath,
		State:      report.Summary.State.String(),
		Total:      report.Counts.Total(),
		Completed:  report.Counts.Completed,
		Failed:     report.Counts.Failed,
		Downloaded: report.Summary.Downloaded,
		Backoff:    report.Summary.BackoffTime,
		Elapsed:    report.Summary.Elapsed,
	})
	if err != nil {
		log.Warn("failed to record run", zap.Error(err))
	}
}

func init() {
	fetchCmd.Flags().IntVarP(&flagFetchWorkers, "workers", "w", 0, "Concurrent downloads, 0 runs sequentially")
	fetchCmd.Flags().BoolVar(&flagFetchNoTUI, "no-tui", false, "Plain text output instead of the progress view")
	rootCmd.AddCommand(fetchCmd)
}
