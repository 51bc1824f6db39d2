// Command sluice routes statements across shards, rewrites encrypted
// columns and manages replication slots for online migrations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sluice/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.Reported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
