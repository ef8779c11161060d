package cli

import (
	"errors"
	"fmt"

	"meal-buddy/internal/app"
	"meal-buddy/internal/metrics"

	"github.com/spf13/cobra"
)

var errNoMetrics = errors.New("metrics are not recorded with the memory store")

func metricsCmd(svc func() *app.Services) *cobra.Command {
	m := &cobra.Command{
		Use:   "metrics",
		Short: "Inspect and prune extraction metrics",
	}

	var usageDays int
	usage := &cobra.Command{
		Use:   "usage",
		Short: "Token usage per day and process health",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := svc()
			if s.Metrics == nil {
				return errNoMetrics
			}
			rows, err := s.Metrics.GetDailyUsage(cmd.Context(), usageDays)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No usage recorded yet.")
			}
			for _, d := range rows {
				fmt.Fprintf(out, "%s  %6d prompt  %6d completion  %3d calls\n", d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution)
			}
			fmt.Fprintf(out, "\n%s\n", metrics.GetSysHealth(s.DataDir).Summary())
			return nil
		},
	}
	usage.Flags().IntVar(&usageDays, "days", 7, "Number of days to report")

	var keepDays int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old metric records",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := svc()
			if s.Metrics == nil {
				return errNoMetrics
			}
			affected, err := s.Metrics.Cleanup(cmd.Context(), keepDays)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records.\n", affected)
			return nil
		},
	}
	cleanup.Flags().IntVar(&keepDays, "days", 30, "Keep records for the last N days")

	m.AddCommand(usage, cleanup)
	return m
}
