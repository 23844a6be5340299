package main

import (
	"os"

	"github.com/stonekeeper/stonekeeper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
