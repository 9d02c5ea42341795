package main

import (
	"fmt"
	"os"

	"github.com/punchamoorthee/clawledger/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		code := cli.GetExitCode(err)
		// Ledger refusals are already rendered in the selected format.
		if code != cli.ExitFailure {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}
