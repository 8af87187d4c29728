package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"syncademic/internal/config"
	"syncademic/internal/domain"
)

// Operator exit codes.
const (
	ExitOK        = 0
	ExitTransient = 1
	ExitTerminal  = 2
	ExitQuota     = 3
	ExitAuth      = 4
)

// exitError carries an explicit process exit code out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// ExitCode maps a command error onto the operator exit code contract.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitTerminal
}

func exitCodeForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrQuotaExceeded:
		return ExitQuota
	case domain.ErrAuthExpired:
		return ExitAuth
	case domain.ErrSourceUnreachable, domain.ErrCancelled:
		return ExitTransient
	default:
		return ExitTerminal
	}
}

// NewRootCommand builds the syncademic command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "syncademic",
		Short:         "Mirror ICS feeds into a target calendar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./syncademic.yaml", "path to config file")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}

	root.AddCommand(newSyncCommand(loadConfig))
	root.AddCommand(newServeCommand(loadConfig))
	root.AddCommand(newProfileCommand(loadConfig))
	root.AddCommand(newAuthCommand(loadConfig))
	return root
}
