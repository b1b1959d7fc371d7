package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/checker"
)

func migrateCommand() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every table from SQLite into PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.start(ctx); err != nil {
				return err
			}

			p, err := a.newPipeline()
			if err != nil {
				return err
			}

			stats, err := p.SaveAll(ctx)
			if stats != nil {
				stats.Print(cmd.OutOrStdout())
			}
			if err != nil {
				return fmt.Errorf("migration interrupted: %w", err)
			}

			if !verify {
				return nil
			}
			report, err := a.verify(ctx)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().Int("workers", 0, "chunks of one table written concurrently (WORKERS)")
	cmd.Flags().String("write-mode", "", "row commits each row, chunk commits each chunk (WRITE_MODE)")
	cmd.Flags().BoolVar(&verify, "verify", false, "check row counts and ids once the migration finishes")
	return cmd
}

func verifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every source row exists in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.start(ctx); err != nil {
				return err
			}

			report, err := a.verify(ctx)
			if err != nil {
				return err
			}
			printReport(cmd, report)
			return nil
		},
	}
}

func printReport(cmd *cobra.Command, report *checker.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Verification passed")
	for _, t := range report.Tables {
		fmt.Fprintf(out, "  %-20s %8d / %-8d (%d chunks)\n", t.Table, t.Destination, t.Source, t.Chunks)
	}
}
