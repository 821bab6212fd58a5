// Command fidelity captures <model-viewer> scenarios and scores them
// against reference renderer goldens.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/fidelity/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
