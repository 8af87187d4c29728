package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"syncademic/internal/config"
	"syncademic/internal/domain"
	syncer "syncademic/internal/sync"
)

func newSyncCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var profileID string
	var syncType string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync for a profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if profileID == "" {
				return &exitError{code: ExitTerminal, msg: "--profile is required"}
			}
			st := domain.SyncType(syncType)
			if st != domain.SyncRegular && st != domain.SyncFull {
				return &exitError{code: ExitTerminal, msg: fmt.Sprintf("unknown sync type %q", syncType)}
			}

			cfg, err := loadConfig()
			if err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return &exitError{code: ExitTransient, msg: err.Error()}
			}
			defer a.close()

			out := a.orch.Sync(cmd.Context(), syncer.Request{
				ProfileID: profileID,
				Trigger:   domain.TriggerManual,
				Type:      st,
			})

			switch out.State {
			case syncer.StateSucceeded:
				fmt.Fprintf(cmd.OutOrStdout(), "sync succeeded: %d created, %d deleted\n", out.Created, out.Deleted)
				return nil
			case syncer.StateSucceededWithErrors:
				fmt.Fprintf(cmd.OutOrStdout(), "sync succeeded with errors: %d created, %d deleted\n", out.Created, out.Deleted)
				return nil
			default:
				return &exitError{
					code: exitCodeForKind(out.Kind),
					msg:  fmt.Sprintf("sync %s: %s", out.State, out.Kind.UserMessage()),
				}
			}
		},
	}

	cmd.Flags().StringVar(&profileID, "profile", "", "sync profile id")
	cmd.Flags().StringVar(&syncType, "type", string(domain.SyncRegular), "sync type: regular or full")
	return cmd
}
