package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"personpipe/internal/store"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the stored dataset against the pipeline's integrity rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			db, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			report, err := db.Verify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Checked %d records\n", report.TotalRecords)
			if report.OK() {
				fmt.Fprintln(out, "All checks passed")
				return nil
			}
			for _, issue := range report.Issues {
				if issue.Rows > 0 {
					fmt.Fprintf(out, "  FAIL %s (%d rows)\n", issue.Check, issue.Rows)
				} else {
					fmt.Fprintf(out, "  FAIL %s\n", issue.Check)
				}
			}
			return fmt.Errorf("verification failed with %d issue(s)", len(report.Issues))
		},
	}
}
