// Command claimlens annotates patent claims from the command line.
package main

import (
	"os"

	"github.com/turtacn/ClaimLens/internal/interfaces/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
