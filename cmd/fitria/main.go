package main

import (
	"os"

	"github.com/itsmewidii/fitriacookry/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
