package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"syncademic/internal/config"
	"syncademic/internal/domain"
)

func newAuthCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage backend authorizations",
	}
	cmd.AddCommand(newAuthSetCommand(loadConfig))
	return cmd
}

// newAuthSetCommand stores the OAuth grant for a user so syncs can write
// to their target calendar. With an expiry in the past (or none at all
// and a dead token) syncs end AuthExpired until the grant is replaced.
func newAuthSetCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		userID       string
		accountID    string
		accountEmail string
		accessToken  string
		refreshToken string
		expiresAt    string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a backend authorization for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := domain.BackendAuthorization{
				UserID:               userID,
				ProviderAccountID:    accountID,
				ProviderAccountEmail: accountEmail,
				AccessToken:          accessToken,
				RefreshToken:         refreshToken,
			}
			if expiresAt != "" {
				exp, err := time.Parse(time.RFC3339, expiresAt)
				if err != nil {
					return &exitError{code: ExitTerminal, msg: "invalid --expires-at, want RFC3339: " + err.Error()}
				}
				a.ExpirationDate = &exp
			}
			a.Normalize()
			if err := a.Validate(); err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}

			cfg, err := loadConfig()
			if err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}
			app, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return &exitError{code: ExitTransient, msg: err.Error()}
			}
			defer app.close()

			if err := app.auths.PutAuthorization(cmd.Context(), a); err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "authorization stored for user %s\n", a.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&accountID, "account-id", "", "provider account id")
	cmd.Flags().StringVar(&accountEmail, "email", "", "provider account email")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "OAuth access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token")
	cmd.Flags().StringVar(&expiresAt, "expires-at", "", "access token expiry, RFC3339")
	return cmd
}
