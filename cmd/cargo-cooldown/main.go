// Command cargo-cooldown wraps cargo update/metadata with a cooldown
// guard: it defers adoption of dependency versions published more
// recently than a configured window.
package main

import (
	"fmt"
	"os"

	"github.com/dertin/cargo-cooldown/internal/cliutil"
)

var (
	version   = "dev"
	commitSHA = "unknown"
	buildDate = "unknown"
)

func main() {
	cliutil.SetVersion(version, commitSHA, buildDate)
	if err := cliutil.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cargo-cooldown:", err)
		os.Exit(1)
	}
}
