// Command jobqd runs the job queue as a standalone daemon: a store backend,
// the email job type, the health monitor and the HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
