package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"personpipe/internal/fakerapi"
	"personpipe/internal/fetch"
	"personpipe/internal/ingest"
	"personpipe/internal/metrics"
	"personpipe/internal/quality"
	"personpipe/internal/store"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var (
		gender    string
		total     int
		batchSize int
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch, anonymize, and store person records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if gender == "" {
				gender = cfg.Ingest.Gender
			}
			if total == 0 {
				total = cfg.Ingest.Total
			}
			if batchSize == 0 {
				batchSize = cfg.Ingest.BatchSize
			}

			// One ingestion run at a time per database.
			lock := flock.New(cfg.Database.Path + ".lock")
			held, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire ingest lock: %w", err)
			}
			if !held {
				return fmt.Errorf("another ingest run is already writing to %s", cfg.Database.Path)
			}
			defer func() { _ = lock.Unlock() }()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink := metrics.NewSink()
			var server *metrics.Server
			if cfg.Metrics.Enabled {
				server = metrics.StartServer(cfg.Metrics.Listen, sink, logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = server.Shutdown(shutdownCtx)
				}()
			}

			db, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			client := fakerapi.NewClient(fakerapi.Config{
				BaseURL:        cfg.API.BaseURL,
				TimeoutSeconds: cfg.API.RequestTimeout,
			})

			fetchOpts := []fetch.Option{
				fetch.WithLogger(logger),
				fetch.WithMaxRetries(cfg.API.MaxRetries),
				fetch.WithBackoff(
					time.Duration(cfg.API.RetryBaseDelay)*time.Second,
					time.Duration(cfg.API.RetryMaxDelay)*time.Second,
				),
				fetch.WithMaxInFlight(cfg.API.MaxConnections),
				fetch.WithSeedBase(cfg.Ingest.SeedBase),
			}

			var finishProgress func()
			if isatty.IsTerminal(os.Stdout.Fd()) {
				tracker, done := startProgress(cmd, total)
				finishProgress = done
				fetchOpts = append(fetchOpts, fetch.WithProgress(func(fetched int64) {
					tracker.SetValue(fetched)
				}))
			}

			fetcher := fetch.New(client, fetchOpts...)
			scorer := quality.NewScorer(logger, sink)
			orchestrator := ingest.New(fetcher, db, scorer, sink, logger)

			result, err := orchestrator.Run(runCtx, ingest.Params{
				Gender:    gender,
				Total:     total,
				BatchSize: batchSize,
				Strict:    strict,
			})
			if finishProgress != nil {
				finishProgress()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s complete\n", result.RunID)
			fmt.Fprintf(out, "  fetched:  %d\n", result.Fetched)
			fmt.Fprintf(out, "  skipped:  %d\n", result.Skipped)
			fmt.Fprintf(out, "  inserted: %d\n", result.Inserted)
			if result.Scored {
				fmt.Fprintf(out, "  quality:  %.3f\n", result.Snapshot.OverallScore)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&gender, "gender", "", "Gender filter for fetched records (defaults to config)")
	cmd.Flags().IntVar(&total, "total", 0, "Number of records to fetch (defaults to config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per upstream request (defaults to config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail the run on the first malformed record")
	return cmd
}

func startProgress(cmd *cobra.Command, total int) (*progress.Tracker, func()) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(cmd.OutOrStdout())
	pw.SetUpdateFrequency(200 * time.Millisecond)
	pw.SetTrackerLength(30)
	pw.Style().Visibility.ETA = true

	tracker := &progress.Tracker{Message: "fetching records", Total: int64(total)}
	pw.AppendTracker(tracker)
	go pw.Render()

	return tracker, func() {
		tracker.MarkAsDone()
		for pw.IsRenderInProgress() && pw.LengthActive() > 0 {
			time.Sleep(10 * time.Millisecond)
		}
		pw.Stop()
	}
}
