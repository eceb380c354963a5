package cli

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/subvote/internal/model"
)

// BindTokenTTL is how long a chat bind token stays redeemable.
const BindTokenTTL = time.Hour

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and admins",
	}

	cmd.AddCommand(newUserAddCommand(rootOpts))
	cmd.AddCommand(newUserListCommand(rootOpts))
	cmd.AddCommand(newUserSetRoleCommand(rootOpts))
	cmd.AddCommand(newUserBindTokenCommand(rootOpts))
	cmd.AddCommand(newUserDeleteCommand(rootOpts))

	return cmd
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "add <username> <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ParseRole(role)
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeInvalid, "invalid --role", err)
			}
			addr, err := mail.ParseAddress(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeInvalid, fmt.Sprintf("invalid email %q", args[1]), err)
			}

			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			u, err := rt.store.CreateUser(cmd.Context(), model.User{
				Username:  args[0],
				Email:     addr.Address,
				Role:      r,
				CreatedAt: rootOpts.Now(),
			})
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to create user", err)
			}
			return rt.out.Success(userView(u))
		},
	}

	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "role (user|admin)")
	return cmd
}

func newUserListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			users, err := rt.store.ListUsers(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to list users", err)
			}
			return rt.out.Success(usersView(users))
		},
	}
}

func newUserSetRoleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <username> <role>",
		Short: "Promote or demote a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := model.ParseRole(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeInvalid, "invalid role", err)
			}

			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			if err := rt.store.SetRole(ctx, args[0], role); err != nil {
				return storeError(err, fmt.Sprintf("user %q", args[0]))
			}
			u, err := lookupUser(ctx, rt.store, args[0])
			if err != nil {
				return err
			}
			return rt.out.Success(userView(u))
		},
	}
}

func newUserBindTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "bind-token <username>",
		Short: "Issue a one-time token that binds a Telegram account to the user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			u, err := lookupUser(ctx, rt.store, args[0])
			if err != nil {
				return err
			}

			view := bindTokenView{
				Username:  u.Username,
				Token:     uuid.NewString(),
				ExpiresAt: rootOpts.Now().Add(BindTokenTTL),
			}
			if err := rt.store.SetBindToken(ctx, u.ID, view.Token, view.ExpiresAt); err != nil {
				return WrapExitError(ExitCommandError, ErrCodeStore, "failed to store bind token", err)
			}
			return rt.out.Success(view)
		},
	}
}

func newUserDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user with their applications and votes",
		Long: `Delete a user. Their applications, votes and record rows are removed
from the database. DNS records at the provider are left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			ctx := cmd.Context()

			u, err := lookupUser(ctx, rt.store, args[0])
			if err != nil {
				return err
			}
			if err := rt.store.DeleteUser(ctx, u.ID); err != nil {
				return storeError(err, fmt.Sprintf("user %q", args[0]))
			}
			return rt.out.Success(fmt.Sprintf("Deleted user %s", u.Username))
		},
	}
}
