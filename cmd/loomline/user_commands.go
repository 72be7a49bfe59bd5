package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loomline/internal/store"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage worker accounts",
	}

	userCmd.AddCommand(newUserAddCommand(ctx))
	userCmd.AddCommand(newUserListCommand(ctx))
	userCmd.AddCommand(newUserShowCommand(ctx))
	userCmd.AddCommand(newUserDeactivateCommand(ctx))

	return userCmd
}

func newUserAddCommand(ctx *commandContext) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "add <username> <full-name>",
		Short: "Register a user with a department role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				user, err := st.CreateUser(cmd.Context(), args[0], args[1], role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d, role %s)\n", user.Username, user.ID, user.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Department role (RAP, CAT, MAY, THIET_KE, DINH_KET, THU_MUA, ADMIN)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newUserListCommand(ctx *commandContext) *cobra.Command {
	var roleFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				var users []*store.User
				var err error
				if strings.TrimSpace(roleFilter) != "" {
					users, err = st.UsersByRole(cmd.Context(), roleFilter)
				} else {
					users, err = st.ListUsers(cmd.Context())
				}
				if err != nil {
					return err
				}
				if len(users) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{
						strconv.FormatInt(u.ID, 10),
						u.Username,
						u.FullName,
						u.Role,
						yesNo(u.Active),
					})
				}
				table := renderTable(
					[]string{"ID", "Username", "Name", "Role", "Active"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&roleFilter, "role", "", "Only show active users with this role")
	return cmd
}

func newUserShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id-or-username>",
		Short: "Show one user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				user, err := resolveUser(cmd, st, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(user.Username, colorize) {
					fmt.Fprintln(out, line)
				}
				activeKind := statusOK
				if !user.Active {
					activeKind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine("Name", statusInfo, user.FullName, colorize))
				fmt.Fprintln(out, renderStatusLine("Role", statusInfo, user.Role, colorize))
				fmt.Fprintln(out, renderStatusLine("Active", activeKind, yesNo(user.Active), colorize))
				fmt.Fprintln(out, renderStatusLine("Created", statusInfo, formatLocalTime(user.CreatedAt), colorize))
				return nil
			})
		},
	}
}

func resolveUser(cmd *cobra.Command, st *store.Store, arg string) (*store.User, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64); err == nil && id > 0 {
		return st.GetUser(cmd.Context(), id)
	}
	return st.GetUserByUsername(cmd.Context(), arg)
}

func newUserDeactivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Deactivate a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				if err := st.SetUserActive(cmd.Context(), id, false); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deactivated user %d\n", id)
				return nil
			})
		},
	}
}
