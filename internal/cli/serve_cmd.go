package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"syncademic/internal/config"
	appLog "syncademic/internal/log"
	"syncademic/internal/scheduler"
)

func newServeCommand(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled sync loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return &exitError{code: ExitTerminal, msg: err.Error()}
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return &exitError{code: ExitTransient, msg: err.Error()}
			}
			defer a.close()

			sched := scheduler.New(cfg.RefreshCron, a.profiles, a.orch)
			if err := sched.Start(cmd.Context()); err != nil {
				return &exitError{code: ExitTerminal, msg: "invalid cron spec: " + err.Error()}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-sigCh:
				appLog.Info("signal received, shutting down", "signal", sig.String())
			case <-cmd.Context().Done():
			}

			sched.Stop()
			return nil
		},
	}
}
