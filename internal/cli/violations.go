package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/store"
)

func newViolationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "violations",
		Aliases: []string{"v"},
		Short:   "Query and maintain recorded violations",
	}
	cmd.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newRmCmd(a),
		newPruneCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
	)
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var severity string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List violations, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.GetAll(cmd.Context(), store.ListParams{
				Severity: strings.ToUpper(severity),
				Limit:    limit,
			})
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVarP(&severity, "severity", "s", "", "Filter by severity (INFO, WARNING, ALERT, CRITICAL)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Max results (0 for all)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one violation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a violation and its evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			deleted, err := s.Delete(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("rm: %w", err)
			}
			if !deleted {
				return fmt.Errorf("rm %d: %w", id, store.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%d}`+"\n", id)
			return nil
		},
	}
}

func newPruneCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete violations older than --days (default: retention.days)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Retention.Days
			}
			s, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Prune(cmd.Context(), days)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), `{"deleted":%d,"days":%d}`+"\n", n, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age in days; 0 deletes everything")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show violation statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			stats, err := s.Statistics(cmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Export every violation as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			records, err := s.GetAll(cmd.Context(), store.ListParams{})
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), records)
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
