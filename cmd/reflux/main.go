// Command reflux runs and validates dispatcher conformance scenarios.
package main

import (
	"os"

	"github.com/reflux-go/reflux/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
