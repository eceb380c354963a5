package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
)

// NewReportCommand creates the report command group.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Review abuse reports",
		Long: `Review complaints filed against names under the parent domain.

A report starts new. "ack" marks it seen; "suspend" deletes the reported
record at the DNS provider and in the database; "ignore" closes it without
action. Suspended and ignored reports cannot be acted on again.`,
	}

	cmd.AddCommand(newReportListCommand(rootOpts))
	cmd.AddCommand(newReportActionCommand(rootOpts, "ack", "Acknowledge a report", (*abuse.Service).Acknowledge))
	cmd.AddCommand(newReportActionCommand(rootOpts, "ignore", "Close a report without action", (*abuse.Service).Ignore))
	cmd.AddCommand(newReportSuspendCommand(rootOpts))

	return cmd
}

func newReportListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List abuse reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st model.ReportStatus
			if status != "" {
				parsed, err := model.ParseReportStatus(status)
				if err != nil {
					return WrapExitError(ExitCommandError, ErrCodeInvalid, "invalid --status", err)
				}
				st = parsed
			}

			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			reports, err := rt.store.ListAbuseReports(cmd.Context(), st)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to list reports", err)
			}
			return rt.out.Success(reportsView(reports))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only reports with this status (new|acknowledged|resolved|ignored)")
	return cmd
}

func newReportActionCommand(
	rootOpts *RootOptions,
	use, short string,
	action func(*abuse.Service, context.Context, int64) (model.AbuseReport, error),
) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReportID(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := action(rt.reports, cmd.Context(), id)
			if err != nil {
				return reportError(err, id)
			}
			return rt.out.Success(reportView(report))
		},
	}
}

func newReportSuspendCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "suspend <id>",
		Short: "Delete the reported record and close the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseReportID(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.reports.Suspend(cmd.Context(), id)
			if err != nil {
				return reportError(err, id)
			}
			return rt.out.Success(suspensionView(s))
		},
	}
}

func parseReportID(arg string) (int64, error) {
	id, err := parseID(arg)
	if err != nil {
		return 0, NewExitError(ExitCommandError, ErrCodeInvalid, fmt.Sprintf("invalid report id %q", arg))
	}
	return id, nil
}

func reportError(err error, id int64) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NewExitError(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("report %d not found", id))
	case errors.Is(err, abuse.ErrNoRecord):
		return WrapExitError(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("report %d names no existing record", id), err)
	case errors.Is(err, abuse.ErrReportClosed):
		return NewExitError(ExitFailure, ErrCodeConflict, fmt.Sprintf("report %d is already handled", id))
	case dnsprovider.IsProviderError(err):
		return WrapExitError(ExitFailure, ErrCodeDNS, fmt.Sprintf("report %d: the DNS delete failed, report left open", id), err)
	}
	return WrapExitError(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to handle report %d", id), err)
}
