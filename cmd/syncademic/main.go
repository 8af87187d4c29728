package main

import (
	"context"
	"os"

	"syncademic/internal/cli"
	appLog "syncademic/internal/log"
)

func main() {
	root := cli.NewRootCommand()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		appLog.Error("command failed", err)
	}
	os.Exit(cli.ExitCode(err))
}
