package main

import (
	"fmt"
	"os"
)

// main hands off to the cobra root. Each subsystem runs as its own process
// through a subcommand; business logic lives in the internal service packages.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
