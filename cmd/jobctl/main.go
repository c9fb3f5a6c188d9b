// jobctl is the command line console for container jobs.
package main

import (
	"os"

	"jobconsole/internal/cli"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}
