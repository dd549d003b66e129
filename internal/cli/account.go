package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/shennong/internal/session"
	"github.com/me/shennong/pkg/model"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the Shennong backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email == "" {
				if email, err = promptLine(cmd, "Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptPassword(cmd, "Password"); err != nil {
					return err
				}
			}
			if email == "" || password == "" {
				return fmt.Errorf("email and password are required")
			}

			tok, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			u, err := saveSession(cmd.Context(), tok)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	return cmd
}

// saveSession stores tok, then looks up the user it belongs to.
func saveSession(ctx context.Context, tok *model.Token) (*model.User, error) {
	sess := &session.Session{Token: tok.AccessToken, RefreshToken: tok.RefreshToken}
	if err := sessions.Save(sess); err != nil {
		return nil, err
	}
	u, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	sess.User = u
	if err := sessions.Save(sess); err != nil {
		return nil, err
	}
	logger.Debug("session saved", "path", sessions.Path(), "user", u.ID)
	return u, nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := currentUser(); err != nil {
				return err
			}
			u, err := client.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			printUser(cmd, u)
			return nil
		},
	}
}

func printUser(cmd *cobra.Command, u *model.User) {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = r.Role
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:     %d\n", u.ID)
	fmt.Fprintf(out, "  Email:    %s\n", u.Email)
	fmt.Fprintf(out, "  Username: %s\n", u.Username)
	if len(roles) > 0 {
		fmt.Fprintf(out, "  Roles:    %s\n", strings.Join(roles, ", "))
	}
	if u.Created != "" {
		fmt.Fprintf(out, "  Created:  %s\n", u.Created)
	}
}

func newRegisterCmd() *cobra.Command {
	var reg model.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. A verification code is emailed; confirm it with `shennong verify`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if reg.Email == "" {
				return fmt.Errorf("--email is required")
			}
			if reg.Username == "" {
				reg.Username = reg.Email
			}
			if reg.Password == "" {
				pw, err := promptPassword(cmd, "Password")
				if err != nil {
					return err
				}
				reg.Password = pw
			}

			u, err := client.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s created. A verification code was sent to %s.\n", u.Username, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&reg.Username, "username", "", "Username (defaults to the email)")
	cmd.Flags().StringVar(&reg.Password, "password", "", "Password (prompted if omitted)")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <email> <code>",
		Short: "Confirm a registration and sign in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := client.VerifyRegistration(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			u, err := saveSession(cmd.Context(), tok)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Verified. Logged in as %s\n", u.Email)
			return nil
		},
	}
}

func newResetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Request a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.ResetPassword(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "If %s has an account, a reset link is on its way.\n", args[0])
			return nil
		},
	}
}

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage your account",
	}
	cmd.AddCommand(newAccountUpdateCmd())
	return cmd
}

func newAccountUpdateCmd() *cobra.Command {
	var email, username string
	var changePassword bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change email, username or password",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := currentUser()
			if err != nil {
				return err
			}

			var upd model.UserUpdate
			if cmd.Flags().Changed("email") {
				upd.Email = &email
			}
			if cmd.Flags().Changed("username") {
				upd.Username = &username
			}
			if changePassword {
				pw, err := promptPassword(cmd, "New password")
				if err != nil {
					return err
				}
				upd.Password = &pw
			}
			if upd == (model.UserUpdate{}) {
				return fmt.Errorf("nothing to update: pass --email, --username or --password")
			}

			updated, err := client.UpdateUser(cmd.Context(), u.ID, upd)
			if err != nil {
				return err
			}
			sess, err := sessions.Load()
			if err != nil {
				return err
			}
			if sess != nil {
				sess.User = updated
				if err := sessions.Save(sess); err != nil {
					return err
				}
			}
			printUser(cmd, updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "New email")
	cmd.Flags().StringVar(&username, "username", "", "New username")
	cmd.Flags().BoolVar(&changePassword, "password", false, "Prompt for a new password")
	return cmd
}
