// Command please is the entry point for the mcp-please CLI.
package main

import (
	"fmt"
	"os"

	"github.com/pleaseai/mcp-please/cmd/please/app"
)

func main() {
	err := app.NewRootCmd().Execute()
	if code := app.ExitCode(err); code != 0 {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "please: %s\n", msg)
		}
		os.Exit(code)
	}
}
