package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/submission"
)

// Resolution reasons recorded for operator actions.
const (
	ForceApproveReason = "force-approved by operator"
	ForceRejectReason  = "rejected by operator"
	ExpireOldReason    = "expired by operator"
)

// NewAppCommand creates the app command group.
func NewAppCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "app",
		Short: "Inspect and resolve applications",
	}

	cmd.AddCommand(newAppListCommand(rootOpts))
	cmd.AddCommand(newAppShowCommand(rootOpts))
	cmd.AddCommand(newAppForceCommand(rootOpts, model.OutcomeApproved))
	cmd.AddCommand(newAppForceCommand(rootOpts, model.OutcomeRejected))
	cmd.AddCommand(newAppExpireOldCommand(rootOpts))
	cmd.AddCommand(newAppSubmitCommand(rootOpts))

	return cmd
}

func newAppListCommand(rootOpts *RootOptions) *cobra.Command {
	var status, username string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			var filter store.ApplicationFilter
			if status != "" {
				st, err := model.ParseStatus(status)
				if err != nil {
					return WrapExitError(ExitCommandError, ErrCodeInvalid, "invalid --status", err)
				}
				filter.Status = st
			}
			if username != "" {
				u, err := lookupUser(ctx, rt.store, username)
				if err != nil {
					return err
				}
				filter.UserID = u.ID
			}

			apps, err := rt.store.ListApplications(ctx, filter)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to list applications", err)
			}
			return rt.out.Success(applicationsView(apps))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only applications with this status")
	cmd.Flags().StringVar(&username, "user", "", "only applications by this username")
	return cmd
}

func newAppShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an application with its votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			app, err := rt.store.GetApplication(ctx, id)
			if err != nil {
				return storeError(err, fmt.Sprintf("application %d", id))
			}
			votes, err := rt.store.ListVotes(ctx, id)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to list votes", err)
			}
			names, err := rt.store.VoterNames(ctx, votes)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to look up voters", err)
			}
			return rt.out.Success(applicationDetailView{
				Application: app,
				Votes:       votes,
				Tally:       model.Count(votes),
				voterNames:  names,
			})
		},
	}
}

func newAppForceCommand(rootOpts *RootOptions, outcome model.Outcome) *cobra.Command {
	use, short := "force-approve <id>", "Approve an application now and apply its DNS change"
	if outcome == model.OutcomeRejected {
		use, short = "force-reject <id> [reason]", "Reject an application now"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			reason := ForceApproveReason
			if outcome == model.OutcomeRejected {
				reason = ForceRejectReason
				if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
					reason = strings.TrimSpace(args[1])
				}
			} else if len(args) == 2 {
				return NewExitError(ExitCommandError, ErrCodeInvalid, "force-approve takes no reason")
			}

			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.engine.Resolve(cmd.Context(), id, reason, outcome)
			if err != nil {
				return resolveError(err, id)
			}
			if err := rt.out.Success(resolutionView(res)); err != nil {
				return err
			}
			if res.MaterializeErr != nil {
				return WrapExitError(ExitFailure, ErrCodeDNS,
					fmt.Sprintf("application %d approved but the DNS change failed", id), res.MaterializeErr)
			}
			return nil
		},
	}
}

func newAppExpireOldCommand(rootOpts *RootOptions) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "expire-old",
		Short: "Expire pending applications created on or before a date",
		Long: `Expire every pending application created on or before the given day (UTC).
Defaults to today. Each application is resolved individually, so one that is
decided concurrently by a vote or the sweeper is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cutoff, err := endOfDay(before, rootOpts.Now())
			if err != nil {
				return err
			}

			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			apps, err := rt.store.ListApplications(ctx, store.ApplicationFilter{
				Status:        model.StatusPending,
				CreatedBefore: cutoff,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to list applications", err)
			}

			result := expireView{Before: cutoff}
			for _, app := range apps {
				_, err := rt.engine.Resolve(ctx, app.ID, ExpireOldReason, model.OutcomeExpired)
				switch {
				case errors.Is(err, decision.ErrAlreadyResolved):
					result.Skipped = append(result.Skipped, app.ID)
				case err != nil:
					rt.logger.Error("expire failed", "application_id", app.ID, "error", err)
					result.Failed = append(result.Failed, app.ID)
				default:
					result.Expired = append(result.Expired, app.ID)
				}
			}

			if err := rt.out.Success(result); err != nil {
				return err
			}
			if len(result.Failed) > 0 {
				return NewExitError(ExitFailure, ErrCodeGeneric,
					fmt.Sprintf("%d application(s) could not be expired", len(result.Failed)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "cutoff day as YYYY-MM-DD (default today)")
	return cmd
}

func newAppSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var username, name, typ, value, purpose string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit an application on behalf of a user",
		Example: `  subvote app submit --user alice --name blog --type A --value 203.0.113.7 --purpose "personal blog"
  subvote app submit --user alice --name @ --type A --value 203.0.113.8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			u, err := lookupUser(ctx, rt.store, username)
			if err != nil {
				return err
			}

			app, err := rt.submissions.Submit(ctx, submission.Request{
				UserID:  u.ID,
				Name:    name,
				Type:    typ,
				Value:   value,
				Purpose: purpose,
			})
			var ve *submission.ValidationError
			switch {
			case errors.As(err, &ve):
				return WrapExitError(ExitCommandError, ErrCodeInvalid, "invalid application", err)
			case err != nil:
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to submit application", err)
			}
			return rt.out.Success(applicationView(app))
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "requesting username (required)")
	cmd.Flags().StringVar(&name, "name", "", `subdomain label, or "@" for the parent domain`)
	cmd.Flags().StringVar(&typ, "type", "A", "record type (A|CNAME)")
	cmd.Flags().StringVar(&value, "value", "", "record value (required)")
	cmd.Flags().StringVar(&purpose, "purpose", "", "what the subdomain is for")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, ErrCodeInvalid, fmt.Sprintf("invalid application id %q", arg))
	}
	return id, nil
}

// endOfDay parses YYYY-MM-DD (or uses now's day) and returns the first
// instant of the following day in UTC.
func endOfDay(day string, now time.Time) (time.Time, error) {
	var d time.Time
	if day == "" {
		now = now.UTC()
		d = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		parsed, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return time.Time{}, WrapExitError(ExitCommandError, ErrCodeInvalid, "invalid --before, want YYYY-MM-DD", err)
		}
		d = parsed
	}
	return d.AddDate(0, 0, 1), nil
}

func lookupUser(ctx context.Context, s *store.Store, username string) (model.User, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return model.User{}, storeError(err, fmt.Sprintf("user %q", username))
	}
	return u, nil
}

func storeError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, ErrCodeNotFound, what+" not found")
	}
	return WrapExitError(ExitCommandError, ErrCodeStore, "database error", err)
}

func resolveError(err error, id int64) error {
	switch {
	case errors.Is(err, decision.ErrApplicationNotFound):
		return NewExitError(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("application %d not found", id))
	case errors.Is(err, decision.ErrAlreadyResolved):
		return NewExitError(ExitFailure, ErrCodeConflict, fmt.Sprintf("application %d is already resolved", id))
	}
	return WrapExitError(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to resolve application %d", id), err)
}
