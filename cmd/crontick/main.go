// Command crontick runs scheduled work: queued one-shot jobs and recurring
// module tasks, on demand, on a schedule or behind an HTTP trigger.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
