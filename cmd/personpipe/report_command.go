package main

import (
	"github.com/spf13/cobra"

	"personpipe/internal/quality"
	"personpipe/internal/report"
	"personpipe/internal/store"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Render a summary of the stored dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			db, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			data, err := report.Collect(cmd.Context(), db, quality.NewScorer(logger, nil))
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), data)
		},
	}
}
