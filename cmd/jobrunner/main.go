// Command jobrunner runs demo jobs against a configurable status store.
//
// Exit codes:
//   - 0: Success
//   - 1: General error or failed job
//   - 2: Invalid usage or input
//   - 4: Job not found
//   - 7: Operation not supported by the configured backend
//   - 130: Canceled
package main

import (
	"os"

	"github.com/vulntor/jobrunner/cmd/jobrunner/commands"
)

func main() {
	root := commands.NewCommand()

	cmd, err := root.ExecuteC()
	if err != nil {
		commands.ReportError(cmd, err)
		os.Exit(commands.ExitCode(err))
	}
}
