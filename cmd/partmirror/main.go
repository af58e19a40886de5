// Command partmirror runs the replication pipeline outside the hosted
// runtime: a long-lived queue worker and a notification relay.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/partmirror/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
