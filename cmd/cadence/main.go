// Package main implements the cadence command: the task API server, the
// event processors that consume its events, and the operational commands
// that support them.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
