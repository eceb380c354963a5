package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/subvote/internal/decision"
)

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Decide every application whose voting window has closed, once",
		Long: `Run one deadline sweep and exit.

Applications with no votes expire; otherwise a strict majority of approvals
approves and anything else rejects. Useful from cron when serve is not running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.engine.Sweep(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "sweep failed", err)
			}
			if err := rt.out.Success(sweepView(report)); err != nil {
				return err
			}
			if report.Failed > 0 {
				return NewExitError(ExitFailure, ErrCodeGeneric,
					fmt.Sprintf("%d application(s) could not be processed; they will be retried", report.Failed))
			}
			return nil
		},
	}
}

type sweepView decision.SweepReport

func (v sweepView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Sweep %s: %d due, %d approved, %d rejected, %d expired, %d errored, %d skipped, %d failed\n",
		v.RunID, v.Due, v.Approved, v.Rejected, v.Expired, v.Errored, v.Skipped, v.Failed)
	return err
}
