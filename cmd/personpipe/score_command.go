package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"personpipe/internal/quality"
	"personpipe/internal/store"
)

func newScoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Compute the quality score of the stored dataset",
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

			rows, err := db.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := quality.NewScorer(logger, nil).Score(rows)
			if errors.Is(err, quality.ErrInsufficientData) {
				return fmt.Errorf("dataset has %d rows; at least %d are needed for scoring", len(rows), quality.MinRecords)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Overall quality: %.3f\n", snap.OverallScore)
			fmt.Fprintf(out, "PII masking:     %.3f\n", snap.PIIMasking)
			fmt.Fprintf(out, "Valid records:   %d/%d\n", snap.ValidRecords, snap.TotalRecords)

			fields := make([]string, 0, len(snap.Completeness))
			for field := range snap.Completeness {
				fields = append(fields, field)
			}
			sort.Strings(fields)
			for _, field := range fields {
				fmt.Fprintf(out, "  %-16s completeness=%.3f uniqueness=%.3f format=%.3f\n",
					field, snap.Completeness[field], snap.Uniqueness[field], snap.FormatValidity[field])
			}
			return nil
		},
	}
}
