// Command scribe is the CLI surface for the commit engine (§6): init,
// commit, log, status, verify and watch, each a thin shell over the
// repo/cdc/envelope packages with no domain logic of its own.
package main

import (
	"fmt"
	"os"

	"github.com/scribehq/scribe/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer logging.OnExit()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}
