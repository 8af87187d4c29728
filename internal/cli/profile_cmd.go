package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"syncademic/internal/config"
	"syncademic/internal/domain"
	"syncademic/internal/rules"
	syncer "syncademic/internal/sync"
)

func newProfileCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage sync profiles",
	}
	cmd.AddCommand(newProfileCreateCommand(loadConfig))
	return cmd
}

func newProfileCreateCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		id          string
		userID      string
		sourceURL   string
		targetID    string
		title       string
		rulesetPath string
		noSync      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a sync profile and run its first sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}

			profile := domain.SyncProfile{
				ID:               id,
				UserID:           userID,
				Title:            title,
				SourceURL:        sourceURL,
				TargetCalendarID: targetID,
				Status:           domain.StatusNotStarted,
				CreatedAt:        time.Now().UTC(),
			}

			if rulesetPath != "" {
				raw, err := os.ReadFile(rulesetPath)
				if err != nil {
					return &exitError{code: ExitTerminal, msg: "read ruleset: " + err.Error()}
				}
				// Reject bad rulesets at creation rather than on first sync.
				if _, err := rules.ParseRuleset(string(raw), rules.Limits{
					MaxRules:                cfg.MaxRules,
					MaxConditions:           cfg.MaxConditions,
					MaxActions:              cfg.MaxActions,
					MaxNestingDepth:         cfg.MaxNestingDepth,
					MaxTextFieldValueLength: cfg.MaxTextFieldValueLength,
				}); err != nil {
					return &exitError{code: ExitTerminal, msg: "invalid ruleset: " + err.Error()}
				}
				profile.RulesetJSON = string(raw)
			}

			if err := profile.Validate(); err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return &exitError{code: ExitTransient, msg: err.Error()}
			}
			defer a.close()

			if err := a.profiles.PutProfile(cmd.Context(), profile); err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}
			a.bus.Publish(domain.SyncProfileCreated{
				EventMeta: domain.EventMeta{Correlation: profile.ID, At: time.Now().UTC()},
				Profile:   profile,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "profile %s created\n", profile.ID)

			if noSync {
				return nil
			}

			out := a.orch.Sync(cmd.Context(), syncer.Request{
				ProfileID: profile.ID,
				Trigger:   domain.TriggerOnCreate,
				Type:      domain.SyncRegular,
			})
			if out.State == syncer.StateFailed || out.State == syncer.StateCancelled {
				return &exitError{
					code: exitCodeForKind(out.Kind),
					msg:  fmt.Sprintf("initial sync %s: %s", out.State, out.Kind.UserMessage()),
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initial sync: %d created, %d deleted\n", out.Created, out.Deleted)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "profile id")
	cmd.Flags().StringVar(&userID, "user", "", "owning user id")
	cmd.Flags().StringVar(&sourceURL, "source", "", "ICS source URL")
	cmd.Flags().StringVar(&targetID, "target", "", "target calendar id")
	cmd.Flags().StringVar(&title, "title", "", "profile title")
	cmd.Flags().StringVar(&rulesetPath, "ruleset-file", "", "path to a ruleset JSON file")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the initial sync")
	return cmd
}
